package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	ServerURL           string `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	ExperimentID        string `env:"EXPERIMENT_ID" envDefault:"demo"`
	CohortID            string `env:"COHORT_ID" envDefault:"cohort-1"`
	StageID             string `env:"STAGE_ID" envDefault:"chips"`
	ParticipantID       string `env:"PARTICIPANT_ID,required,notEmpty"`
	ParticipantPublicID string `env:"PARTICIPANT_PUBLIC_ID"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
