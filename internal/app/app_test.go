package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/postplanner-backend/internal/app"
	"github.com/unclebandit/postplanner-backend/internal/config"
	"github.com/unclebandit/postplanner-backend/internal/generator"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

func memoryConfig() config.AppConfig {
	return config.AppConfig{
		StorageDriver: "memory",
		Generator:     config.GeneratorConfig{Provider: "mock"},
		Generation:    config.GenerationConfig{HorizonWeeks: 8, WeekPolicy: "any"},
	}
}

func TestBuildWithMemoryStorage(t *testing.T) {
	a, err := app.Build(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Generation.Lease)
	assert.IsType(t, &generator.Mock{}, a.Generation.Generator)
	assert.Equal(t, service.WeekPolicyAny, a.Availability.Policy)
	assert.Equal(t, 8, a.Availability.HorizonWeeks)
	assert.Same(t, a.Availability, a.Generation.Availability)
}

func TestBuildRejectsUnknownDrivers(t *testing.T) {
	cfg := memoryConfig()
	cfg.StorageDriver = "sqlite"
	_, err := app.Build(context.Background(), cfg)
	assert.ErrorContains(t, err, "STORAGE_DRIVER")

	cfg = memoryConfig()
	cfg.Generator.Provider = "llama"
	_, err = app.Build(context.Background(), cfg)
	assert.ErrorContains(t, err, "GENERATOR")
}

func TestNewGeneratorRequiresKeys(t *testing.T) {
	_, err := app.NewGenerator(context.Background(), config.GeneratorConfig{Provider: "gemini"})
	assert.ErrorContains(t, err, "GEMINI_API_KEY")

	_, err = app.NewGenerator(context.Background(), config.GeneratorConfig{Provider: "openai"})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}
