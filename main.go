package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"ChatLink/data/database/mgo/mongoutil"
	"ChatLink/global/config"
	"ChatLink/logger"
	mid "ChatLink/middleware"
	midsec "ChatLink/middleware/security"
	chathttp "ChatLink/module/chat"
	"ChatLink/module/chat/invite"
	"ChatLink/module/chat/message"
	userhttp "ChatLink/module/user"
	usersvc "ChatLink/module/user/service"
	"ChatLink/service/chat"
	"ChatLink/service/storage"
	"ChatLink/tools/ids"
	jwtsec "ChatLink/tools/security"
)

func main() {
	cfg := config.Load()

	ids.SetNodeID(cfg.NodeID)

	jwtOpts := jwtsec.Options{Secret: cfg.JWTSecret, TTL: cfg.TokenTTL}
	midsec.Configure(jwtOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	mgo, err := mongoutil.NewMongoDB(ctx, &mongoutil.Config{
		Uri:         cfg.MongoURI,
		Database:    cfg.MongoDatabase,
		MaxPoolSize: cfg.MongoMaxPool,
	})
	if err != nil {
		logger.Errorf("[boot] mongo connect failed: %v", err)
		return
	}
	db := mgo.GetDB()

	users := usersvc.NewService(db, jwtOpts)
	msgs := message.NewStore(db)
	inviteStore := invite.NewMongoStore(db)
	invites := invite.NewService(inviteStore)

	if err := users.EnsureIndexes(ctx); err != nil {
		logger.Errorf("[boot] user indexes: %v", err)
		return
	}
	if err := msgs.EnsureIndexes(ctx); err != nil {
		logger.Errorf("[boot] message indexes: %v", err)
		return
	}
	if err := inviteStore.EnsureIndexes(ctx); err != nil {
		logger.Errorf("[boot] invitation indexes: %v", err)
		return
	}

	// Redis presence mirror is optional; a nil mirror disables it.
	var mirror *storage.Mirror
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("[boot] redis unreachable, presence mirror disabled: %v", err)
		} else {
			mirror = storage.NewMirror(rdb, 0)
		}
	}

	gw := chat.NewServer(msgs, midsec.VerifyToken, mirror)

	userHandler := userhttp.NewHandler(users, gw.Registry())
	chatHandler := chathttp.NewHandler(invites, msgs, users, gw)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", gw.HandleWS)

	mid.POST(r, "/api/auth/register", userHandler.HandlerRegister, mid.RouteOpt{IsAuth: false})
	mid.POST(r, "/api/auth/login", userHandler.HandlerLogin, mid.RouteOpt{IsAuth: false})
	mid.GET(r, "/api/auth/me", userHandler.HandlerMe, mid.RouteOpt{IsAuth: true})

	mid.GET(r, "/api/users", userHandler.HandlerList, mid.RouteOpt{IsAuth: true})

	mid.GET(r, "/api/invitations", chatHandler.HandlerListInvitations, mid.RouteOpt{IsAuth: true})
	mid.POST(r, "/api/invitations", chatHandler.HandlerCreateInvitation, mid.RouteOpt{IsAuth: true})
	mid.PUT(r, "/api/invitations/:id", chatHandler.HandlerRespondInvitation, mid.RouteOpt{IsAuth: true})
	mid.DELETE(r, "/api/invitations/:id", chatHandler.HandlerDeleteInvitation, mid.RouteOpt{IsAuth: true})

	mid.GET(r, "/api/messages", chatHandler.HandlerGetMessages, mid.RouteOpt{IsAuth: true})
	mid.POST(r, "/api/messages", chatHandler.HandlerCreateMessage, mid.RouteOpt{IsAuth: true})

	mid.POST(r, "/api/seed", userHandler.HandlerSeed, mid.RouteOpt{IsAuth: false})

	logger.Infof("[boot] listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Errorf("[boot] server stopped: %v", err)
	}
}
