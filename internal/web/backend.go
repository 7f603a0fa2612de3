package web

import (
	"fmt"

	"github.com/JonMunkholm/votedesk/internal/apiclient"
	"github.com/JonMunkholm/votedesk/internal/datatable"
	"github.com/JonMunkholm/votedesk/internal/entities"
	"github.com/JonMunkholm/votedesk/internal/store"
)

// Backend resolves an entity to the function that fetches its pages.
type Backend interface {
	Fetcher(def entities.Definition) (datatable.FetchFunc, error)
}

// StoreBackend reads pages straight from Postgres.
type StoreBackend struct {
	Store *store.Store
}

func (b StoreBackend) Fetcher(def entities.Definition) (datatable.FetchFunc, error) {
	if def.Source.Table == "" {
		return nil, fmt.Errorf("%w: %s has no source table", datatable.ErrInvalidConfig, def.Key)
	}
	return b.Store.Fetcher(def.StoreSource()), nil
}

// APIBackend reads pages from the platform's REST API.
type APIBackend struct {
	Client *apiclient.Client
}

func (b APIBackend) Fetcher(def entities.Definition) (datatable.FetchFunc, error) {
	if def.Source.APIPath == "" {
		return nil, fmt.Errorf("%w: %s has no api path", datatable.ErrInvalidConfig, def.Key)
	}
	return b.Client.Fetcher(def.Source.APIPath, def.CaseConfig()), nil
}
