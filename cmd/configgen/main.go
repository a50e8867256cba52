package main

import (
	"flag"
	"log"

	"github.com/danmuck/camctl/internal/config"
)

func main() {
	kind := flag.String("kind", "rig", "config kind: rig")
	output := flag.String("output", "camctl.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "camctl.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *kind != "rig" {
		log.Fatalf("unknown kind: %s", *kind)
	}

	if *validate {
		cfg, err := config.LoadRigConfig(*input)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s (%d cameras)", *kind, *input, len(cfg.Cameras))
		return
	}

	if err := config.WriteTemplate(*output, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, *output)
}
