package config

type AppConfig struct {
	Client     ClientConfig
	Session    SessionConfig
	HostClient HostClientConfig
	Log        LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	clientCfg, err := LoadClient()
	if err != nil {
		return AppConfig{}, err
	}
	sessionCfg, err := LoadSession()
	if err != nil {
		return AppConfig{}, err
	}
	hostCfg, err := LoadHostClient()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Client:     clientCfg,
		Session:    sessionCfg,
		HostClient: hostCfg,
		Log:        logCfg,
	}, nil
}
