// Package integration provides the embedded crontab snippet for installing the job.
package integration

import (
	"bytes"
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Cron contains the crontab template.
//
//go:embed cron.tmpl
var Cron string

// DefaultSchedule runs the job hourly.
const DefaultSchedule = "0 * * * *"

// Params are substituted into the crontab template.
type Params struct {
	// Schedule is the five-field cron expression.
	Schedule string
	// Binary is the absolute path of the executable.
	Binary string
	// WorkDir is the directory the job runs in.
	WorkDir string
	// EnvFile is the dotenv file passed to the job.
	EnvFile string
	// LogFile receives the job's output.
	LogFile string
}

// Render renders the crontab line for the current executable. Empty fields
// of p are filled from the running process.
func Render(p Params) (string, error) {
	if p.Schedule == "" {
		p.Schedule = DefaultSchedule
	}

	if len(strings.Fields(p.Schedule)) != 5 {
		return "", errors.New("schedule must have five fields")
	}

	if p.Binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", err
		}

		p.Binary = exe
	}

	if p.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}

		p.WorkDir = wd
	}

	if p.EnvFile == "" {
		p.EnvFile = ".env"
	}

	if p.LogFile == "" {
		p.LogFile = filepath.Join(p.WorkDir, "fileculator.log")
	}

	tmpl, err := template.New("cron").Funcs(template.FuncMap{"quote": shellQuote}).Parse(Cron)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", err
	}

	return strings.TrimRight(buf.String(), "\n"), nil
}

// shellQuote wraps s in single quotes for /bin/sh, escaping embedded quotes.
// Cron passes percent signs to the command as newlines, so they are escaped too.
func shellQuote(s string) string {
	s = "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"

	return strings.ReplaceAll(s, "%", `\%`)
}
