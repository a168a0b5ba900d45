package threadweaver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	data := []byte(`
weaver:
  maxThreads: 4
events:
  enabled: true
  vendor: fs
  basePath: /tmp/weaver-journal
`)
	cfg, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Weaver.MaxThreads)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "fs", cfg.Events.Vendor)
	assert.Equal(t, "/tmp/weaver-journal", cfg.Events.BasePath)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("{}"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Weaver.MaxThreads)
	assert.False(t, cfg.Events.Enabled)
}

func TestParseConfigRejectsGarbage(t *testing.T) {
	_, err := ParseConfig([]byte("weaver: ["))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero value", Config{}, false},
		{"memory vendor", Config{Events: EventsConfig{Vendor: "memory"}}, false},
		{"negative threads", Config{Weaver: WeaverConfig{MaxThreads: -1}}, true},
		{"fs without base path", Config{Events: EventsConfig{Vendor: "fs"}}, true},
		{"unknown vendor", Config{Events: EventsConfig{Vendor: "carrier-pigeon"}}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
