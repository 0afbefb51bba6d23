package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStealthContextOptionsEuropeanTarget(t *testing.T) {
	opts := stealthContextOptions("test-agent", "https://www.bol.com/nl/nl/p/widget/9300000/")

	require.NotNil(t, opts.Geolocation)
	assert.InDelta(t, 52.3676, opts.Geolocation.Latitude, 0.0001)
	assert.InDelta(t, 4.9041, opts.Geolocation.Longitude, 0.0001)
	assert.Equal(t, []string{"geolocation"}, opts.Permissions)

	require.NotNil(t, opts.UserAgent)
	assert.Equal(t, "test-agent", *opts.UserAgent)
	require.NotNil(t, opts.TimezoneId)
	assert.Equal(t, "Europe/Amsterdam", *opts.TimezoneId)
}

func TestStealthContextOptionsNonEuropeanTarget(t *testing.T) {
	opts := stealthContextOptions("", "https://www.amazon.com/dp/B0TEST")

	assert.Nil(t, opts.Geolocation)
	assert.Empty(t, opts.Permissions)
	assert.Nil(t, opts.UserAgent, "empty user agent should not override the browser default")

	require.NotNil(t, opts.Viewport)
	assert.Contains(t, viewports, *opts.Viewport)
}

func TestStealthArgsCoverAutomationTells(t *testing.T) {
	args := stealthArgs()

	assert.Contains(t, args, "--disable-blink-features=AutomationControlled")
	assert.Contains(t, args, "--disable-automation")
	assert.Contains(t, args, "--no-first-run")
	assert.Contains(t, args, "--lang=en-US,en")
}

func TestStealthInitScriptsHideWebdriver(t *testing.T) {
	scripts := stealthInitScripts()

	var hasWebdriver, hasWebGL bool
	for _, s := range scripts {
		require.NotEmpty(t, s)
		if strings.Contains(s, "webdriver") {
			hasWebdriver = true
		}
		if strings.Contains(s, "WebGLRenderingContext") && strings.Contains(s, "Intel") {
			hasWebGL = true
		}
	}
	assert.True(t, hasWebdriver)
	assert.True(t, hasWebGL)
}
