package config

// AppConfig is everything the negotiation server reads at boot.
type AppConfig struct {
	Server ServerConfig
	Log    LogConfig
}

// LoadApp loads both halves and names the server in the log config when
// LOG_SERVICE is unset.
func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	if logCfg.Service == "" {
		logCfg.Service = "negotiation-server"
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{Server: serverCfg, Log: logCfg}, nil
}
