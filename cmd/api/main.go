// Package main (in api-subfolder) provides launch of the digit recognition HTTP service
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/UnendingLoop/DigitRecognizer/internal/config"
	"github.com/UnendingLoop/DigitRecognizer/internal/imageproc"
	"github.com/UnendingLoop/DigitRecognizer/internal/inference"
	"github.com/UnendingLoop/DigitRecognizer/internal/kafka"
	"github.com/UnendingLoop/DigitRecognizer/internal/mwlogger"
	"github.com/UnendingLoop/DigitRecognizer/internal/service"
	"github.com/UnendingLoop/DigitRecognizer/internal/storage"
	"github.com/UnendingLoop/DigitRecognizer/internal/transport"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig, err := config.Load("./.env")
	if err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(appConfig.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// предел площади картинки - до первого запроса
	imageproc.MaxPixels = appConfig.MaxImagePixels

	// поднимаем движки инференса - один раз на весь процесс
	predictor, err := inference.OpenPredictor(appConfig.Model)
	if err != nil {
		log.Fatalf("Failed to load model %q: %v", appConfig.Model.Path, err)
	}
	log.Printf("Model %q loaded, engines in pool: %d", appConfig.Model.Path, appConfig.Model.PoolSize)

	// подключиться к хранилищу загрузок
	strg, err := storage.NewUploadStorage(ctx, appConfig.Storage, 5, 10*time.Second)
	if err != nil {
		closePredictor(predictor)
		log.Fatalf("Failed to init upload storage: %v", err)
	}

	// очередь событий опциональна
	pub, producer := setupPublisher(ctx, appConfig.Kafka)

	// создаем экземпляр сервиса
	var svc DigitAPIService = service.NewRecognitionService(appConfig, predictor, pub, strg)
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewDigitHandler(svc, appConfig.MaxUploadBytes)
	// сетапим сервер
	engine := ginext.New(appConfig.GinMode)
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "X-Request-Id"},
		ExposeHeaders:   []string{"X-Request-Id"},
	}))

	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/predict", handlers.Predict)       // распознавание
	engine.GET("/uploads/:id", handlers.LoadUpload) // скачать исходник
	engine.GET("/metrics", handlers.Metrics)
	engine.StaticFile("/", filepath.Join(appConfig.WebDir, "index.html"))
	engine.Static("/web", appConfig.WebDir)

	srv := &http.Server{
		Addr:    ":" + appConfig.Port,
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// ждем отмены контекста для запуска грейсфул закрытия движков и кафки
	<-ctx.Done()

	shutdown(srv, svc, producer, predictor)
	log.Println("Exiting app...")
}

func setupPublisher(ctx context.Context, cfg config.KafkaConfig) (service.EventPublisher, *wbfkafka.Producer) {
	if !cfg.Enabled() {
		log.Println("KAFKA_BROKER is empty, prediction events are not published")
		return kafka.NoopPublisher{}, nil
	}

	// ждем пока кафка раздуплится
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := kafka.WaitKafkaReady(waitCtx, cfg.Broker, 5*time.Second); err != nil {
		log.Printf("Kafka is unavailable, prediction events are disabled: %v", err)
		return kafka.NoopPublisher{}, nil
	}
	if err := kafka.InitKafkaTopics(waitCtx, cfg.Broker, 5*time.Second, cfg.Topic); err != nil {
		log.Printf("Failed to create topic %q, prediction events are disabled: %v", cfg.Topic, err)
		return kafka.NoopPublisher{}, nil
	}

	// подключиться к кафке как продюсер
	producer := wbfkafka.NewProducer([]string{cfg.Broker}, cfg.Topic)
	return kafka.NewPredictionPublisher(producer), producer
}

func shutdown(srv *http.Server, svc DigitAPIService, producer *wbfkafka.Producer, predictor *inference.Predictor) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// дожидаемся текущих запросов - движки должны быть свободны перед закрытием
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Println("Failed to shutdown HTTP-server correctly:", err)
	}

	// досылаем события, ушедшие в фон, до закрытия продюсера
	svc.WaitEvents()
	log.Println("Pending prediction events flushed.")

	// Closing Kafka connection:
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Println("Failed to close Kafka-producer:", err)
		}
		log.Println("Kafka-producer connection closed.")
	}

	closePredictor(predictor)
}

func closePredictor(predictor *inference.Predictor) {
	if err := predictor.Close(); err != nil {
		log.Println("Failed to close inference engines correctly:", err)
		return
	}
	log.Println("Inference engines closed")
}
