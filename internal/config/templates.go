package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "rig":
		return rigTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const rigTemplate = `name = "camctl"
addr = ":9000"
cors_origins = ["http://localhost:3000"]

[[camera]]
name = "cam1"
driver = "sim"
master = true
fps = 30
width = 512
height = 512

[[camera]]
name = "cam2"
driver = "sim"
master = false
time_base = "cam1"
fps = 30
width = 512
height = 512
`
