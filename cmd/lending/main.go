package main

import (
	stdLog "log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mkayfour/school-lending/lending/app"
	"github.com/mkayfour/school-lending/lending/config"
	"go.uber.org/zap/zapcore"
)

// @title School equipment lending API
// @version 1.0
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLog.Fatal("load envs from .env ", err)
	}
	cfg := config.NewConfig(
		config.WithLogLevel(zapcore.InfoLevel),
		config.WithWriteTimeout(time.Minute),
	)

	app.Run(cfg)
}
