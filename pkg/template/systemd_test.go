package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemdUnit(t *testing.T) {
	unit := SystemdUnit("/var/lib/elchi-decompiler", "decompiler", "/usr/local/bin/elchi-decompiler", "/etc/elchi-decompiler/config.yaml")

	assert.Contains(t, unit, "Type=notify")
	assert.Contains(t, unit, "User=decompiler\nGroup=decompiler\n")
	assert.Contains(t, unit, "ReadWritePaths=/var/log /var/lib/elchi-decompiler\n")
	assert.Contains(t, unit, "ExecStart=/usr/local/bin/elchi-decompiler serve --config /etc/elchi-decompiler/config.yaml\n")
	assert.NotContains(t, unit, "%!")
}
