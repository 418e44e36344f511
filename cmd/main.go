package main

import (
	"log"

	"github.com/watchlist-kata/moviepicker/api/server"
	"github.com/watchlist-kata/moviepicker/internal/config"
	"github.com/watchlist-kata/moviepicker/pkg/logger"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Инициализация кастомного логгера
	customLogger, err := logger.NewLogger(logger.Options{
		ServiceName:  cfg.ServiceName,
		BufferSize:   cfg.LogBufferSize,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Close(customLogger)

	// Запуск сервера
	if err = server.RunServer(cfg, customLogger); err != nil {
		customLogger.Error("server stopped with error", "error", err)
		logger.Close(customLogger)
		log.Fatal(err)
	}
}
