package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zerotrace/internal/api"
	"zerotrace/internal/certificate"
	"zerotrace/internal/config"
	"zerotrace/internal/device"
	"zerotrace/internal/logging"
	"zerotrace/internal/method"
	"zerotrace/internal/reporting"
	"zerotrace/internal/session"
)

const (
	AppName = "ZeroTrace Wipe Engine"

	// Exit codes
	EXIT_SUCCESS = 0
	EXIT_ERROR   = 1
	EXIT_WARNING = 2
)

// Исходы, отображаемые в EXIT_WARNING вместо EXIT_ERROR
var (
	errSignatureInvalid = errors.New("проверка подписи не пройдена")
	errUserCancelled    = errors.New("операция отменена")
)

var (
	cfg            *config.Config
	logger         *zap.Logger
	verbose        bool
	configPath     string
	profile        string
	demoMode       bool
	maxDurationStr string
)

var rootCmd = &cobra.Command{
	Use:     "zerotrace",
	Short:   "ZeroTrace - движок безопасного затирания и сертификации",
	Long:    "Движок безопасного уничтожения данных с подписанными сертификатами затирания",
	Version: certificate.Version,
}

var wipeCmd = &cobra.Command{
	Use:   "wipe <устройство>",
	Short: "Затереть устройство и выпустить сертификат",
	Args:  cobra.ExactArgs(1),
	RunE:  runWipe,
}

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "Показать доступные методы затирания",
	RunE:  runMethods,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <сертификат.json>",
	Short: "Проверить подпись сертификата",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP API движка",
	RunE:  runServe,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Создать или показать ключевую пару подписи",
	RunE:  runKeygen,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Подробный вывод")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Путь к конфигурации")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Профиль производительности (safe/balanced/aggressive)")
	rootCmd.PersistentFlags().BoolVar(&demoMode, "demo", false, "Демо-режим с симулируемыми устройствами")
	rootCmd.PersistentFlags().StringVar(&maxDurationStr, "max-duration", "", "Максимальное время операции (например: 30m, 2h)")

	wipeCmd.Flags().StringP("method", "m", "three_pass", "Метод затирания")
	wipeCmd.Flags().IntP("passes", "p", 0, "Количество проходов (0 = по методу)")
	wipeCmd.Flags().BoolP("force", "f", false, "Пропустить подтверждение")
	wipeCmd.Flags().String("operator", "", "Имя оператора для сертификата")

	serveCmd.Flags().String("listen", "", "Адрес прослушивания (переопределяет конфиг)")

	rootCmd.AddCommand(wipeCmd, methodsCmd, verifyCmd, serveCmd, keygenCmd)
}

// bootstrap загружает конфигурацию и создаёт логгер
func bootstrap() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	if profile != "" {
		if err := config.ApplyProfile(cfg, profile); err != nil {
			return fmt.Errorf("ошибка применения профиля %s: %w", profile, err)
		}
	}

	if maxDurationStr != "" {
		if _, err := time.ParseDuration(maxDurationStr); err != nil {
			return fmt.Errorf("неверный формат max-duration: %w", err)
		}
		cfg.Engine.MaxDuration = maxDurationStr
	}

	logger, err = logging.New(cfg, verbose)
	if err != nil {
		return fmt.Errorf("ошибка инициализации логгера: %w", err)
	}

	if demoMode {
		registerDemoDevices()
		logger.Info("Демо-режим: зарегистрированы симулируемые устройства")
	}

	return nil
}

// registerDemoDevices наполняет реестр демо-устройств
func registerDemoDevices() {
	device.Demo().Register(device.NewSimDevice(
		"demo://drive0", device.MediumNVMe, 64*1024*1024, "Demo NVMe SSD", "DEMO-NVME-0001"))
	device.Demo().Register(device.NewSimDevice(
		"demo://drive1", device.MediumHDD, 64*1024*1024, "Demo HDD", "DEMO-HDD-0001"))
	device.Demo().Register(device.NewSimDevice(
		"demo://drive2", device.MediumSSD, 64*1024*1024, "Demo SATA SSD", "DEMO-SSD-0001"))
}

// nativeDispatch направляет аппаратные команды: демо-устройства в
// симулятор, остальные в exec-реализацию
type nativeDispatch struct {
	sim  device.NativeEraser
	real device.NativeEraser
}

func (n nativeDispatch) Supports(desc device.Descriptor, op device.NativeOp) bool {
	if desc.IsDemo() {
		return n.sim.Supports(desc, op)
	}
	return n.real.Supports(desc, op)
}

func (n nativeDispatch) Execute(ctx context.Context, desc device.Descriptor, op device.NativeOp) error {
	if desc.IsDemo() {
		return n.sim.Execute(ctx, desc, op)
	}
	return n.real.Execute(ctx, desc, op)
}

// buildManager собирает менеджер сессий со всеми зависимостями
func buildManager() (*session.Manager, *certificate.Builder, *reporting.Store, error) {
	signer, err := certificate.NewSigner(cfg.Signing.KeysDir, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ошибка инициализации подписи: %w", err)
	}

	builder := certificate.NewBuilder(signer, logger)
	store := reporting.NewStore(cfg.Reporting, logger)
	native := nativeDispatch{
		sim:  device.NewSimEraser(device.Demo()),
		real: device.NewExecEraser(logger),
	}

	return session.NewManager(cfg, native, builder, store, logger), builder, store, nil
}

// signalContext контекст с отменой по SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runWipe(cmd *cobra.Command, args []string) error {
	if err := bootstrap(); err != nil {
		return err
	}
	defer logger.Sync()

	methodID, _ := cmd.Flags().GetString("method")
	passes, _ := cmd.Flags().GetInt("passes")
	force, _ := cmd.Flags().GetBool("force")
	operator, _ := cmd.Flags().GetString("operator")

	desc, err := device.Resolve(args[0])
	if err != nil {
		return err
	}

	if !force && cfg.Security.RequireForce {
		fmt.Printf("ВНИМАНИЕ: все данные на %s (%s, %d байт) будут безвозвратно уничтожены.\n",
			desc.Path, desc.Type, desc.SizeBytes)
		fmt.Print("Продолжить? (y/N): ")
		var response string
		fmt.Scanln(&response)
		if strings.ToLower(response) != "y" {
			logger.Info("Операция отменена пользователем")
			return nil
		}
		force = true
	}

	ctx, cancel := signalContext()
	defer cancel()

	mgr, _, _, err := buildManager()
	if err != nil {
		return err
	}

	sessionID, err := mgr.Start(ctx, session.StartRequest{
		Device:   desc,
		Method:   methodID,
		Passes:   passes,
		Force:    force,
		Operator: operator,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Сессия %s запущена (%s, метод %s)\n", sessionID, desc.Path, methodID)

	// Опрос прогресса до терминального состояния
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastMessage string
	for {
		<-ticker.C

		sess, err := mgr.GetSession(sessionID)
		if err != nil {
			return err
		}

		snap, _ := mgr.GetProgress(sessionID)
		if snap.StatusMessage != lastMessage {
			fmt.Printf("  [%5.1f%%] %s\n", snap.Percentage, snap.StatusMessage)
			lastMessage = snap.StatusMessage
		}

		if sess.Status.Terminal() {
			return printOutcome(sess)
		}
	}
}

// printOutcome печатает итог сессии и возвращает ошибку для exit code
func printOutcome(sess session.Session) error {
	fmt.Println("\nРезультат:")
	fmt.Println("==================")
	fmt.Printf("  Статус:       %s\n", sess.Status)
	fmt.Printf("  Длительность: %ds\n", sess.DurationSeconds)

	switch sess.Status {
	case session.StatusCompleted:
		fmt.Printf("  Сертификат:   %s\n", sess.CertificateID)
		if sess.Verification != nil {
			fmt.Printf("  Проходов:     %d\n", sess.Verification.PassesCompleted)
		}
		return nil
	case session.StatusCancelled:
		return errUserCancelled
	default:
		return fmt.Errorf("затирание не удалось: %s", sess.ErrorMessage)
	}
}

func runMethods(cmd *cobra.Command, args []string) error {
	fmt.Println("Доступные методы затирания:")
	fmt.Println("==================")
	for _, m := range method.List() {
		kind := "программный"
		if m.RequiresHardware {
			kind = "аппаратный"
		}
		fmt.Printf("  %-15s %-22s %2d проход(ов), %s [%s]\n",
			m.ID, m.Name, m.Passes, kind, strings.Join(m.Standards, ", "))
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	if err := bootstrap(); err != nil {
		return err
	}
	defer logger.Sync()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("ошибка чтения сертификата: %w", err)
	}

	var doc certificate.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("ошибка разбора сертификата: %w", err)
	}

	_, builder, _, err := buildManager()
	if err != nil {
		return err
	}

	result := builder.Verify(&doc)
	if result.Valid {
		fmt.Printf("Сертификат %s: подпись действительна\n", doc.Certificate.ID)
		return nil
	}

	fmt.Printf("Сертификат %s: подпись НЕДЕЙСТВИТЕЛЬНА (%s)\n", doc.Certificate.ID, result.Error)
	return errors.Wrapf(errSignatureInvalid, "сертификат %s", doc.Certificate.ID)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := bootstrap(); err != nil {
		return err
	}
	defer logger.Sync()

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.API.Listen = listen
	}
	cfg.API.Enabled = true

	ctx, cancel := signalContext()
	defer cancel()

	mgr, builder, store, err := buildManager()
	if err != nil {
		return err
	}

	server := api.NewServer(cfg.API, mgr, builder, store, logger)
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("ошибка HTTP сервера: %w", err)
	}

	// Даем активным сессиям дойти до терминального состояния
	logger.Info("Ожидание завершения активных сессий")
	mgr.Wait()
	return nil
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if err := bootstrap(); err != nil {
		return err
	}
	defer logger.Sync()

	signer, err := certificate.NewSigner(cfg.Signing.KeysDir, logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации подписи: %w", err)
	}

	fmt.Printf("Ключи подписи: %s\n", cfg.Signing.KeysDir)
	fmt.Printf("Отпечаток публичного ключа: %s\n", signer.Fingerprint())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errSignatureInvalid) || errors.Is(err, errUserCancelled) {
			os.Exit(EXIT_WARNING)
		}
		os.Exit(EXIT_ERROR)
	}
	os.Exit(EXIT_SUCCESS)
}
