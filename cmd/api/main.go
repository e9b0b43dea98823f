package main

import (
	"context"
	"strconv"
	"time"

	"pos-backend/internal/cart"
	"pos-backend/internal/config"
	"pos-backend/internal/domain/model"
	"pos-backend/internal/handler"
	"pos-backend/internal/infra/db"
	infraRepo "pos-backend/internal/infra/repository"
	"pos-backend/internal/ledger"
	"pos-backend/internal/localstore"
	"pos-backend/internal/offline"
	"pos-backend/internal/realtime"
	"pos-backend/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

type jwtIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

func (i *jwtIssuer) Issue(userID int64, role model.RoleName, tokenVersion int, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.accessTTL)

	claims := jwt.MapClaims{
		"sub":           strconv.FormatInt(userID, 10),
		"role":          string(role),
		"token_version": tokenVersion,
		"iat":           now.Unix(),
		"exp":           expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func main() {
	//.envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.GoEnv == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.StockLedger{},
		&model.AuditLog{},
		&model.Role{},
		&model.Permission{},
		&model.UserRole{},
	); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}
	if err := db.SeedRoles(gormDB); err != nil {
		logger.Fatal("seed roles failed", zap.Error(err))
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	ledgerRepo := infraRepo.NewLedgerGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	roleRepo := infraRepo.NewRoleGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	hasher := usecase.NewBcryptPasswordHasher(12)
	issuer := &jwtIssuer{secret: []byte(cfg.JWTSecret), accessTTL: 15 * time.Minute}

	//権限解決（ロールテーブル優先、メタデータへフォールバック）
	resolver := usecase.NewPermissionResolver(roleRepo, userRepo, clock)

	//在庫変動の配信
	hub := realtime.NewHub()
	names := realtime.NewNameCache(10 * time.Minute)
	projector := realtime.NewProjector(hub, productRepo, ledgerRepo, names, cfg.FeedSize, logger)
	defer projector.Close()

	//在庫調整（トランザクション経路）
	gate := ledger.NewGate(logger)
	inventoryUC := usecase.NewInventoryUsecase(
		txManager, productRepo, inventoryRepo, ledgerRepo, auditRepo,
		gate, hub, idGen, clock, logger,
	)

	//ローカルストア（カート・オフラインキュー）
	store, err := localstore.New(cfg.DataDir)
	if err != nil {
		logger.Fatal("localstore init failed", zap.Error(err))
	}

	queue, err := offline.NewQueue(store, inventoryUC, projector, cfg.MaxReplayAttempts, logger)
	if err != nil {
		logger.Fatal("offline queue init failed", zap.Error(err))
	}

	cartRec, err := cart.NewReconciler(store, productRepo, logger)
	if err != nil {
		logger.Fatal("cart init failed", zap.Error(err))
	}

	//DB疎通を見てオンライン/オフラインを切り替える
	go watchConnectivity(gormDB, queue, logger)

	authUC := usecase.NewAuthUsecase(userRepo, hasher, issuer, clock)
	productUC := usecase.NewProductUsecase(productRepo)

	//Handler生成
	e := echo.New()
	e.HideBanner = true

	handler.NewAuthHandler(authUC).RegisterRoutes(e)
	handler.NewProductHandler(productUC).RegisterRoutes(e)
	handler.NewInventoryHandler(inventoryUC, queue, projector).RegisterRoutes(e, cfg, userRepo, resolver)
	handler.NewCartHandler(cartRec).RegisterRoutes(e, cfg, userRepo)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// 15秒ごとにDBへpingして、断→復帰の遷移でキューの再送を走らせる。
func watchConnectivity(gormDB *gorm.DB, queue *offline.Queue, logger *zap.Logger) {
	for {
		time.Sleep(15 * time.Second)

		online := false
		if sqlDB, err := gormDB.DB(); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			online = sqlDB.PingContext(ctx) == nil
			cancel()
		}

		if online != queue.Online() {
			logger.Info("connectivity changed", zap.Bool("online", online))
		}
		queue.SetOnline(context.Background(), online)
	}
}
