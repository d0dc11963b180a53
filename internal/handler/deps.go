package handler

import (
	"localmart/internal/app/hub"
	"localmart/internal/app/market"
	"localmart/internal/app/storage"
	"localmart/internal/configs"
)

// AppDeps are the shared services every handler closes over.
type AppDeps struct {
	Config  *configs.ServerConfig
	Store   *market.Store
	Manager *hub.Manager
	Media   storage.Service
}
