package main

import (
	"flag"

	"github.com/ametov/acctl/internal/config"
	"github.com/ametov/acctl/internal/observability"
	"github.com/ametov/acctl/internal/protocol/schema"
)

func main() {
	output := flag.String("output", "can_messages.toml", "output path for the messages template")
	validate := flag.Bool("validate", false, "validate an existing messages file instead of writing")
	input := flag.String("input", "can_messages.toml", "messages path for validation")
	force := flag.Bool("force", false, "overwrite an existing messages file")
	flag.Parse()

	logger := observability.InitLogger("configgen")

	if *validate {
		cfg, err := config.Load(*input)
		if err != nil {
			logger.Fatal().Err(err).Msg("config load failed")
		}
		sch, err := schema.Compile(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("schema validation failed")
		}
		logger.Info().Int("messages", len(sch.Messages)).Str("path", *input).Msg("messages validated")
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		logger.Fatal().Err(err).Msg("template write failed")
	}
	logger.Info().Str("path", *output).Msg("messages template written")
}
