package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobhunter-labs/jobhunter/internal/config"
	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
)

const validPipeline = `
schemaVersion: "1.0.0"
name: backend-application
application_id: acme-backend
vars:
  role: Backend Engineer
  location: Berlin
stages:
  - name: profile
    worker: exec
    inputs: [user_profile]
    output: career_profile_output
    params:
      command: ./agents/profile
      args: ["--role", "{{ .vars.role }}"]
    retry:
      attempts: 3
      delay: 2s
      max_delay: 10s
      backoff_factor: 2
    timeout: 5m
  - name: ats
    worker: ats
    inputs: [career_profile_output, job_description]
    output: ats_report
    params:
      resume_key: career_profile_output
    ignore_errors: true
`

func TestLoadPipeline_Valid(t *testing.T) {
	p, err := config.LoadPipeline([]byte(validPipeline), "test.yaml")
	require.NoError(t, err)

	assert.Equal(t, "backend-application", p.Name)
	assert.Equal(t, "acme-backend", p.ApplicationID)
	assert.Equal(t, "Berlin", p.Vars["location"])
	require.Len(t, p.Stages, 2)

	profile := p.Stages[0]
	assert.Equal(t, []string{"user_profile"}, profile.Inputs)
	assert.Equal(t, 3, profile.GetRetryAttempts())
	assert.Equal(t, 2*time.Second, profile.GetRetryDelay())
	assert.Equal(t, 10*time.Second, profile.GetRetryMaxDelay())
	assert.Equal(t, 2.0, profile.GetRetryBackoffFactor())
	assert.True(t, profile.ShouldRetryOnError())
	assert.Equal(t, 5*time.Minute, profile.GetTimeout())

	ats := p.Stages[1]
	assert.True(t, ats.IgnoreErrors)
	assert.Equal(t, 1, ats.GetRetryAttempts())
	assert.Equal(t, time.Second, ats.GetRetryDelay())
	assert.Zero(t, ats.GetTimeout())
	assert.Zero(t, ats.GetRetryJitter())
}

func TestLoadPipeline_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "   "},
		{"no stages", "schemaVersion: \"1.0.0\"\nname: x\nstages: []\n"},
		{"unknown top level field", "schemaVersion: \"1.0.0\"\nname: x\ntasks: []\nstages:\n  - {name: a, worker: exec}\n"},
		{"unknown stage field", "schemaVersion: \"1.0.0\"\nname: x\nstages:\n  - {name: a, worker: exec, register: y}\n"},
		{"missing worker", "schemaVersion: \"1.0.0\"\nname: x\nstages:\n  - {name: a}\n"},
		{"bad timeout", "schemaVersion: \"1.0.0\"\nname: x\nstages:\n  - {name: a, worker: exec, timeout: soon}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadPipeline([]byte(tt.yaml), "bad.yaml")
			require.Error(t, err)
			var cfgErr *jherrors.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadPipeline_SchemaVersion(t *testing.T) {
	_, err := config.LoadPipeline([]byte("schemaVersion: \"2.0.0\"\nname: x\nstages:\n  - {name: a, worker: exec}\n"), "v2.yaml")
	assert.ErrorContains(t, err, "not compatible")

	_, err = config.LoadPipeline([]byte("schemaVersion: \"one\"\nname: x\nstages:\n  - {name: a, worker: exec}\n"), "bad.yaml")
	assert.ErrorContains(t, err, "invalid 'schemaVersion' format")

	_, err = config.LoadPipeline([]byte("schemaVersion: \"v1.2.0\"\nname: x\nstages:\n  - {name: a, worker: exec}\n"), "ok.yaml")
	assert.NoError(t, err)
}

func TestLoadPipeline_LogicalErrorsAreCombined(t *testing.T) {
	doc := `
schemaVersion: "1.0.0"
name: broken
vars:
  role: x
stages:
  - name: search
    worker: exec
    output: job_search_output
    params:
      query: "{{ .vars.title }}"
  - name: search
    worker: exec
    inputs: [job_search_output]
    output: job_search_output
    params:
      jobs: "{{ .input.career_profile_output }}"
      when: "{{ .run.when }}"
  - name: bad name!
    worker: exec
    retry:
      attempts: 2
      delay: 10s
      max_delay: 1s
`
	_, err := config.LoadPipeline([]byte(doc), "broken.yaml")
	require.Error(t, err)
	var vErr *jherrors.ValidationError
	require.ErrorAs(t, err, &vErr)

	msg := err.Error()
	assert.Contains(t, msg, "undefined var 'title'")
	assert.Contains(t, msg, "duplicate stage name")
	assert.Contains(t, msg, "already written by stage 'search'")
	assert.Contains(t, msg, "cannot also be an input")
	assert.Contains(t, msg, "'career_profile_output' which is not listed in the stage inputs")
	assert.Contains(t, msg, "unknown run field 'when'")
	assert.Contains(t, msg, "invalid characters")
	assert.Contains(t, msg, "'retry.max_delay' (1s) cannot be less than 'retry.delay' (10s)")
}

func TestLoadPipelineFromFile(t *testing.T) {
	_, err := config.LoadPipelineFromFile("")
	assert.Error(t, err)

	_, err = config.LoadPipelineFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read pipeline file")

	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPipeline), 0o600))
	p, err := config.LoadPipelineFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, p.FilePath)
}

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestSettingsFromEnv_Defaults(t *testing.T) {
	s, err := config.SettingsFromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "text", s.LogFormat)
	assert.Equal(t, config.SessionBackendFile, s.SessionBackend)
	assert.Equal(t, ".jobhunter/sessions", s.SessionDir)
	assert.False(t, s.SessionCompress)
	assert.Equal(t, "auto", s.S3.Region)
	assert.Equal(t, "jobhunter_events", s.RabbitMQExchange)
}

func TestSettingsFromEnv_Backends(t *testing.T) {
	_, err := config.SettingsFromEnv(env(map[string]string{config.EnvSessionBackend: "postgres"}))
	assert.ErrorContains(t, err, "DB_URL is required")

	s, err := config.SettingsFromEnv(env(map[string]string{
		config.EnvSessionBackend: "postgres",
		config.EnvDBURL:          "postgres://localhost/jobhunter?sslmode=disable",
	}))
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/jobhunter?sslmode=disable", s.DBURL)

	_, err = config.SettingsFromEnv(env(map[string]string{
		config.EnvSessionBackend: "s3",
		config.EnvS3Bucket:       "sessions",
		config.EnvS3AccessKey:    "key",
	}))
	assert.ErrorContains(t, err, "must be set together")

	_, err = config.SettingsFromEnv(env(map[string]string{config.EnvSessionBackend: "redis"}))
	assert.ErrorContains(t, err, "must be one of")

	_, err = config.SettingsFromEnv(env(map[string]string{config.EnvSessionCompress: "maybe"}))
	assert.Error(t, err)

	s, err = config.SettingsFromEnv(env(map[string]string{config.EnvSessionCompress: "true", config.EnvLogFormat: "JSON"}))
	require.NoError(t, err)
	assert.True(t, s.SessionCompress)
	assert.Equal(t, "json", s.LogFormat)
}

func TestLoadSettings_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JOBHUNTER_TEST_ONLY_SESSION_DIR_MARKER=1\nJOBHUNTER_SESSION_DIR="+dir+"\n"), 0o600))
	t.Setenv(config.EnvSessionDir, "")
	require.NoError(t, os.Unsetenv(config.EnvSessionDir))
	t.Setenv(config.EnvSessionBackend, "file")

	s, err := config.LoadSettings(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, dir, s.SessionDir)
	assert.Equal(t, "1", os.Getenv("JOBHUNTER_TEST_ONLY_SESSION_DIR_MARKER"))
	require.NoError(t, os.Unsetenv("JOBHUNTER_TEST_ONLY_SESSION_DIR_MARKER"))
}
