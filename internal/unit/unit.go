package unit

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// File is a rendered unit or desktop entry.
type File struct {
	// Name is the file name, e.g. "clubfridge-kasse@.service".
	Name string
	// Content is the rendered file.
	Content []byte
}

// Params are the values substituted into the templates.
type Params struct {
	// ServiceName is the base name of all units.
	ServiceName string
	// InstallDir is the working directory of the application.
	InstallDir string
	// Python is the interpreter inside the isolated environment.
	Python string
	// EntryPoint is the application script.
	EntryPoint string
	// Display is the X display the kiosk renders on.
	Display string
	// Binary is the installed kasse-deploy executable.
	Binary string
	// Schedule is the OnCalendar expression of the update timer.
	Schedule string
	// ConfigPath is the settings file the timer-driven updater reads.
	ConfigPath string
}

const serviceTemplate = `[Unit]
Description=Clubfridge Kasse for %i
After=graphical.target network-online.target
Wants=network-online.target
StartLimitIntervalSec=60
StartLimitBurst=5

[Service]
Type=simple
User=%i
WorkingDirectory={{.InstallDir}}
Environment=DISPLAY={{.Display}}
Environment=XAUTHORITY=/home/%i/.Xauthority
Environment=KIVY_NO_ARGS=1
ExecStart={{.Python}} {{.EntryPoint}}
Restart=always
RestartSec=5

[Install]
WantedBy=graphical.target
`

const updateServiceTemplate = `[Unit]
Description=Clubfridge Kasse update check for %i
After=network-online.target
Wants=network-online.target

[Service]
Type=oneshot
ExecStart={{.Binary}} --config {{.ConfigPath}} update %i
`

const timerTemplate = `[Unit]
Description=Daily Clubfridge Kasse update check for %i

[Timer]
OnCalendar={{.Schedule}}
Persistent=true
RandomizedDelaySec=10min

[Install]
WantedBy=timers.target
`

const autostartTemplate = `[Desktop Entry]
Type=Application
Name=Clubfridge Kasse display
Comment=Keeps the kiosk display awake
Exec=sh -c "xset s off; xset s noblank; xset -dpms"
Terminal=false
X-GNOME-Autostart-enabled=true
`

// AutostartName is the file name of the desktop autostart entry.
const AutostartName = "clubfridge-kasse.desktop"

//nolint:gochecknoglobals // Parsed once, read-only afterwards.
var templates = template.Must(template.New("units").Option("missingkey=error").Parse(
	`{{define "service"}}` + serviceTemplate + `{{end}}` +
		`{{define "update"}}` + updateServiceTemplate + `{{end}}` +
		`{{define "timer"}}` + timerTemplate + `{{end}}` +
		`{{define "autostart"}}` + autostartTemplate + `{{end}}`,
))

// Service renders the application service template.
func Service(p *Params) (File, error) {
	return render(p.ServiceName+"@.service", "service", p)
}

// UpdateTrigger renders the oneshot update service and the timer that fires it.
func UpdateTrigger(p *Params) ([]File, error) {
	service, err := render(p.ServiceName+"-update@.service", "update", p)
	if err != nil {
		return nil, err
	}

	timer, err := render(p.ServiceName+"-update@.timer", "timer", p)
	if err != nil {
		return nil, err
	}

	return []File{service, timer}, nil
}

// Autostart renders the desktop autostart entry.
func Autostart() (File, error) {
	return render(AutostartName, "autostart", &Params{})
}

// Instance returns the instance name of a template unit, e.g. "kasse@.service" → "kasse@pi.service".
func Instance(templateName, instance string) string {
	base, suffix, found := strings.Cut(templateName, "@")
	if !found {
		return templateName
	}

	return base + "@" + instance + suffix
}

func render(name, templateName string, p *Params) (File, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, templateName, p); err != nil {
		return File{}, fmt.Errorf("render %s: %w", name, err)
	}

	return File{Name: name, Content: buf.Bytes()}, nil
}
