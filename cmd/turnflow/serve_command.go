package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/dmeadows001/turn-qa-sub000/internal/app"
	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/controllers"
	"github.com/dmeadows001/turn-qa-sub000/internal/middleware"
	"github.com/dmeadows001/turn-qa-sub000/internal/routes"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

const shutdownGrace = 15 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled purge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg := config.LoadConfig()

	application, err := app.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s: %w", cfg.AppName, err)
	}
	defer application.Close()

	if err := application.OpenStore(ctx); err != nil {
		return err
	}

	svc, err := newServices(application, newRepos(application))
	if err != nil {
		return err
	}

	router := newRouter(cfg, application, svc)

	c := cron.New()
	if _, err := c.AddFunc(cfg.PurgeSchedule, func() {
		if _, e := svc.purge.Purge(context.Background()); e != nil {
			utils.Logger.WithError(e).Error("Scheduled purge failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule purge cron: %w", err)
	}
	c.Start()
	defer c.Stop()

	allowedOrigins := []string{cfg.AppUrl}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, utils.CORSLowSecurityAllowedOriginLocalhost)
	}
	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           co.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s failed to start: %w", cfg.AppName, err)
	case <-sigCtx.Done():
		utils.Logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func newRouter(cfg *config.Config, application *app.App, svc *serviceSet) *mux.Router {
	healthController := controllers.NewHealthController(application.DB)
	otpController := controllers.NewOTPController(svc.otp, cfg)
	turnController := controllers.NewTurnController(svc.turns, svc.storage, cfg)
	storageController := controllers.NewStorageController(svc.storage)
	propertyController := controllers.NewPropertyController(svc.property)
	smsController := controllers.NewSMSWebhookController(svc.optOut)

	router := mux.NewRouter()
	router.Use(middleware.TimeoutMiddleware(cfg.RequestTimeout))

	// Public
	router.HandleFunc(routes.Health, healthController.HealthCheckHandler).Methods(http.MethodGet)
	router.HandleFunc(routes.OTPSend, otpController.SendCodeHandler).Methods(http.MethodPost)
	router.HandleFunc(routes.OTPVerify, otpController.VerifyCodeHandler).Methods(http.MethodPost)
	router.HandleFunc(routes.OTPLogout, otpController.LogoutHandler).Methods(http.MethodPost)

	webhook := router.NewRoute().Subrouter()
	webhook.Use(middleware.TwilioSignatureMiddleware(cfg.TwilioAuthToken, cfg.AppUrl))
	webhook.HandleFunc(routes.SMSInbound, smsController.InboundHandler).Methods(http.MethodPost)

	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.IdentityMiddleware(svc.identity))

	secured.HandleFunc(routes.TurnsStart, turnController.StartTurnHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.TurnDetail, turnController.GetTurnHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.TurnSubmit, turnController.SubmitTurnHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.TurnNeedsFix, turnController.NeedsFixHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.TurnSubmitFix, turnController.SubmitFixHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.TurnApprove, turnController.ApproveTurnHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.TurnPhotos, turnController.UploadPhotoHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.StorageSign, storageController.SignPhotoHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.PropertyCleaners, propertyController.AssignCleanerHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.PropertyCleaners, propertyController.ListCleanersHandler).Methods(http.MethodGet)

	return router
}
