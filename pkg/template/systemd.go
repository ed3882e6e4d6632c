package template

import "fmt"

// SystemdTemplate is the unit file for the decompiler service. The service
// reports readiness over sd_notify, so the unit is Type=notify.
var SystemdTemplate = `[Unit]
Description=Elchi Decompiler
Requires=network-online.target
After=network-online.target

[Service]
Type=notify

WorkingDirectory=%[1]s

User=%[2]s
Group=%[2]s
NoNewPrivileges=yes
PrivateTmp=yes

ReadWritePaths=/var/log %[1]s
ReadOnlyPaths=/etc/ssl/certs

LimitNOFILE=65536
TasksMax=4096

ExecStart=%[3]s serve --config %[4]s
ExecStop=/bin/kill -TERM $MAINPID
KillMode=control-group
TimeoutStopSec=30

Restart=on-failure
RestartSec=10

SyslogIdentifier=elchi-decompiler

[Install]
WantedBy=multi-user.target
`

// SystemdUnit renders SystemdTemplate.
func SystemdUnit(workDir, user, binary, configPath string) string {
	return fmt.Sprintf(SystemdTemplate, workDir, user, binary, configPath)
}
