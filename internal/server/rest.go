package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/verdant-labs/forestwatch/internal/bridge"
	"github.com/verdant-labs/forestwatch/internal/realtime"
	"github.com/verdant-labs/forestwatch/internal/session"
	"github.com/verdant-labs/forestwatch/internal/store"
	"go.uber.org/zap"
)

type TreeWriter interface {
	SaveTree(ctx context.Context, tree store.Tree) (store.Tree, error)
	UpdateTree(ctx context.Context, treeId string, changes map[string]any) (store.Tree, error)
}

type ForestWriter interface {
	SaveForest(ctx context.Context, forest store.Forest) (store.Forest, error)
	UpdateForest(ctx context.Context, forestId string, changes map[string]any) (store.Forest, error)
}

type ImageWriter interface {
	SaveImage(ctx context.Context, image store.TreeImage) (store.TreeImage, error)
}

// RESTServer hosts the mutating routes the bridge listens on. Handlers only
// talk to the store and write {success,data} envelopes; every socket
// broadcast they cause goes through the bridge, after the response.
type RESTServer struct {
	logger     *zap.Logger
	trees      TreeWriter
	forests    ForestWriter
	images     ImageWriter
	controller *session.Controller
	bridge     *bridge.Bridge
	dispatcher *realtime.Dispatcher
}

func NewRESTServer(
	logger *zap.Logger,
	trees TreeWriter,
	forests ForestWriter,
	images ImageWriter,
	controller *session.Controller,
	b *bridge.Bridge,
	dispatcher *realtime.Dispatcher,
) *RESTServer {
	return &RESTServer{
		logger:     logger,
		trees:      trees,
		forests:    forests,
		images:     images,
		controller: controller,
		bridge:     b,
		dispatcher: dispatcher,
	}
}

func (s *RESTServer) Register(router *mux.Router) {
	treeRoute := bridge.Route{
		Resource: "tree",
		IdParam:  "treeId",
		OnUpdate: func(ctx context.Context, id string, data json.RawMessage) {
			s.dispatcher.TreeUpdated(id, data, realtime.EventTreeUpdated)
		},
		OnCreate: func(ctx context.Context, id string, data json.RawMessage) {
			s.dispatcher.TreeUpdated(id, data, realtime.EventTreeCreated)
		},
	}
	forestRoute := bridge.Route{
		Resource: "forest",
		IdParam:  "forestId",
		OnUpdate: func(ctx context.Context, id string, data json.RawMessage) {
			s.dispatcher.ForestUpdated(id, data, realtime.EventForestUpdated)
		},
		OnCreate: func(ctx context.Context, id string, data json.RawMessage) {
			s.dispatcher.ForestUpdated(id, data, realtime.EventForestCreated)
		},
	}
	uploadRoute := bridge.Route{
		Resource: "tree",
		IdParam:  "treeId",
		OnUpload: func(ctx context.Context, id string, item json.RawMessage) {
			s.dispatcher.ImageUploaded(ctx, id, item)
		},
	}

	router.Handle("/trees",
		s.bridge.Middleware(treeRoute)(http.HandlerFunc(s.createTree))).
		Methods(http.MethodPost)
	router.Handle("/trees/{treeId}",
		s.bridge.Middleware(treeRoute)(http.HandlerFunc(s.updateTree))).
		Methods(http.MethodPut, http.MethodPatch)
	router.Handle("/trees/{treeId}/images",
		s.bridge.Middleware(uploadRoute)(http.HandlerFunc(s.uploadImages))).
		Methods(http.MethodPost)
	router.Handle("/forests",
		s.bridge.Middleware(forestRoute)(http.HandlerFunc(s.createForest))).
		Methods(http.MethodPost)
	router.Handle("/forests/{forestId}",
		s.bridge.Middleware(forestRoute)(http.HandlerFunc(s.updateForest))).
		Methods(http.MethodPut, http.MethodPatch)

	router.HandleFunc("/stats", s.stats).Methods(http.MethodGet)
}

func (s *RESTServer) createTree(w http.ResponseWriter, r *http.Request) {
	var tree store.Tree
	if err := json.NewDecoder(r.Body).Decode(&tree); err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")

		return
	}

	saved, err := s.trees.SaveTree(r.Context(), tree)
	if err != nil {
		s.logger.Error("failed to save tree", zap.Error(err))
		s.writeFailure(w, http.StatusInternalServerError, "failed to save tree")

		return
	}

	s.writeSuccess(w, http.StatusCreated, saved)
}

func (s *RESTServer) updateTree(w http.ResponseWriter, r *http.Request) {
	treeId := mux.Vars(r)["treeId"]

	// A body of literal null decodes cleanly into a nil map.
	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil || changes == nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")

		return
	}

	updated, err := s.trees.UpdateTree(r.Context(), treeId, changes)
	if errors.Is(err, store.ErrNotFound) {
		s.writeFailure(w, http.StatusNotFound, "tree not found")

		return
	}
	if err != nil {
		s.logger.Error("failed to update tree",
			zap.String("treeId", treeId),
			zap.Error(err))
		s.writeFailure(w, http.StatusInternalServerError, "failed to update tree")

		return
	}

	s.writeSuccess(w, http.StatusOK, updated)
}

func (s *RESTServer) uploadImages(w http.ResponseWriter, r *http.Request) {
	treeId := mux.Vars(r)["treeId"]

	var images []store.TreeImage
	if err := json.NewDecoder(r.Body).Decode(&images); err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")

		return
	}

	saved := make([]store.TreeImage, 0, len(images))
	for _, image := range images {
		image.TreeId = treeId

		result, err := s.images.SaveImage(r.Context(), image)
		if err != nil {
			s.logger.Error("failed to save image",
				zap.String("treeId", treeId),
				zap.Error(err))
			s.writeFailure(w, http.StatusInternalServerError, "failed to save images")

			return
		}

		saved = append(saved, result)
	}

	s.writeSuccess(w, http.StatusCreated, saved)
}

func (s *RESTServer) createForest(w http.ResponseWriter, r *http.Request) {
	var forest store.Forest
	if err := json.NewDecoder(r.Body).Decode(&forest); err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")

		return
	}

	saved, err := s.forests.SaveForest(r.Context(), forest)
	if err != nil {
		s.logger.Error("failed to save forest", zap.Error(err))
		s.writeFailure(w, http.StatusInternalServerError, "failed to save forest")

		return
	}

	s.writeSuccess(w, http.StatusCreated, saved)
}

func (s *RESTServer) updateForest(w http.ResponseWriter, r *http.Request) {
	forestId := mux.Vars(r)["forestId"]

	// A body of literal null decodes cleanly into a nil map.
	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil || changes == nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request body")

		return
	}

	updated, err := s.forests.UpdateForest(r.Context(), forestId, changes)
	if errors.Is(err, store.ErrNotFound) {
		s.writeFailure(w, http.StatusNotFound, "forest not found")

		return
	}
	if err != nil {
		s.logger.Error("failed to update forest",
			zap.String("forestId", forestId),
			zap.Error(err))
		s.writeFailure(w, http.StatusInternalServerError, "failed to update forest")

		return
	}

	s.writeSuccess(w, http.StatusOK, updated)
}

func (s *RESTServer) stats(w http.ResponseWriter, r *http.Request) {
	s.writeSuccess(w, http.StatusOK, s.controller.ConnectionStats())
}

func (s *RESTServer) writeSuccess(w http.ResponseWriter, status int, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to encode response data", zap.Error(err))
		s.writeFailure(w, http.StatusInternalServerError, "failed to encode response")

		return
	}

	s.writeEnvelope(w, status, bridge.Envelope{
		Success: true,
		Data:    raw,
	})
}

func (s *RESTServer) writeFailure(w http.ResponseWriter, status int, message string) {
	s.writeEnvelope(w, status, bridge.Envelope{
		Success: false,
		Error:   message,
	})
}

func (s *RESTServer) writeEnvelope(w http.ResponseWriter, status int, envelope bridge.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
