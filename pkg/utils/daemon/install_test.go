package daemon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderUnit(t *testing.T) {
	unit := renderUnit("/usr/local/bin/calib", "/etc/calib.yaml", "/run/calib.sock")

	assert.Contains(t, unit, "ExecStart=/usr/local/bin/calib daemon --config=/etc/calib.yaml --daemon-socket=/run/calib.sock\n")
	assert.Contains(t, unit, "ExecReload=/bin/kill -HUP $MAINPID\n")
	assert.NotContains(t, unit, "/path/to/")
	assert.True(t, strings.HasPrefix(unit, "[Unit]\n"))
}

func TestUnitPath(t *testing.T) {
	assert.Equal(t, "/etc/systemd/system/calib.service", unitPath())
}
