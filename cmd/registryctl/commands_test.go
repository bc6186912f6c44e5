package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/models"
)

func TestParseEntityAcceptsSingularAndPlural(t *testing.T) {
	entity, err := parseEntity("courses")
	require.NoError(t, err)
	assert.Equal(t, models.EntityCourse, entity)

	entity, err = parseEntity("enrollment")
	require.NoError(t, err)
	assert.Equal(t, models.EntityEnrollment, entity)

	_, err = parseEntity("professors")
	assert.Error(t, err)
}

func TestCommandsValidateArgumentsBeforeConnecting(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"export", "professors"})
	assert.ErrorContains(t, root.Execute(), "unknown collection")

	root = newRootCmd()
	root.SetArgs([]string{"export", "courses", "--format", "xlsx"})
	assert.ErrorContains(t, root.Execute(), "unsupported format")

	root = newRootCmd()
	root.SetArgs([]string{"import", "courses"})
	assert.Error(t, root.Execute())
}
