package server

import "github.com/taskhub/taskhub/config"

const envAliasDev = "dev"

func isDevelopmentEnv(env string) bool {
	return env == config.EnvDevelopment || env == envAliasDev
}
