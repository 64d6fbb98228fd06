// Package inspect serves a read-only JSON view of a loaded scene. Besides
// the scene contents it answers culling and picking queries for arbitrary
// cameras, and serves culling debug wireframes and a Graphviz dump.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Faultbox/scenery/internal/culling"
	"github.com/Faultbox/scenery/internal/drawset"
	"github.com/Faultbox/scenery/internal/engine/camera"
	"github.com/Faultbox/scenery/internal/gpu/soft"
	"github.com/Faultbox/scenery/internal/logger"
	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/math"
	"github.com/Faultbox/scenery/pkg/scene"
)

// Server answers inspector requests for one scene. Culling requests are
// serialized; everything else only reads the scene.
type Server struct {
	md    *formats.MeshData
	scene *scene.Scene
	log   *zap.Logger

	boxes  []math.BoundingBox
	bounds math.BoundingBox
	orbit  *camera.OrbitCamera
	mode   culling.Mode

	mu     sync.Mutex
	dev    *soft.Device
	draws  *drawset.DrawSet
	culler *culling.Engine
	last   CullResult

	router *mux.Router
}

type options struct {
	log  *zap.Logger
	lod  int
	mode culling.Mode
}

// Option configures New.
type Option func(*options)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = logger.OrNop(l) }
}

// WithLOD builds the culled draw commands at the given LOD.
func WithLOD(lod int) Option {
	return func(o *options) { o.lod = lod }
}

// WithMode sets the culling mode used when a request does not name one.
func WithMode(m culling.Mode) Option {
	return func(o *options) { o.mode = m }
}

// New uploads the scene's geometry to a software device, culls it once from
// a camera framing the whole scene and builds the router. Textures are
// never sampled, so none are loaded.
func New(md *formats.MeshData, s *scene.Scene, opts ...Option) (*Server, error) {
	o := options{log: zap.NewNop(), mode: culling.ModeCPU}
	for _, opt := range opts {
		opt(&o)
	}

	srv := &Server{
		md:    md,
		scene: s,
		log:   o.log,
		mode:  o.mode,
		boxes: culling.WorldBoxes(s, md),
		dev:   soft.New(soft.WithLogger(o.log.Named("gpu"))),
	}
	srv.bounds = math.EmptyBox()
	for _, b := range srv.boxes {
		if !b.IsEmpty() {
			srv.bounds = srv.bounds.Union(b)
		}
	}

	var err error
	srv.draws, err = drawset.New(srv.dev, md.WithoutTextures(), s,
		drawset.WithLOD(o.lod), drawset.WithLogger(o.log.Named("drawset")))
	if err != nil {
		return nil, fmt.Errorf("create draw set: %w", err)
	}
	srv.culler, err = culling.New(srv.dev, srv.draws, srv.boxes,
		culling.WithMode(o.mode), culling.WithLogger(o.log.Named("culling")))
	if err != nil {
		return nil, fmt.Errorf("create culling engine: %w", err)
	}

	srv.orbit = camera.NewOrbitCamera()
	srv.orbit.FitToBounds(srv.bounds)
	if _, err := srv.cull(srv.orbit.Pose(), srv.orbit.Lens, o.mode); err != nil {
		return nil, err
	}

	srv.router = mux.NewRouter()
	srv.routes()
	return srv, nil
}

func (srv *Server) routes() {
	r := srv.router
	r.HandleFunc("/api/summary", srv.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/nodes", srv.handleNodes).Methods(http.MethodGet)
	r.HandleFunc("/api/nodes/{id:[0-9]+}", srv.handleNode).Methods(http.MethodGet)
	r.HandleFunc("/api/meshes/{id:[0-9]+}", srv.handleMesh).Methods(http.MethodGet)
	r.HandleFunc("/api/materials", srv.handleMaterials).Methods(http.MethodGet)
	r.HandleFunc("/api/cull", srv.handleCull).Methods(http.MethodGet)
	r.HandleFunc("/api/pick", srv.handlePick).Methods(http.MethodGet)
	r.HandleFunc("/api/debug/lines", srv.handleDebugLines).Methods(http.MethodGet)
	r.HandleFunc("/scene.dot", srv.handleDot).Methods(http.MethodGet)
}

// Handler returns the router wrapped with panic recovery, gzip and access
// logging.
func (srv *Server) Handler() http.Handler {
	stdLog := zap.NewStdLog(srv.log.Named("http"))
	var h http.Handler = srv.router
	h = handlers.CompressHandler(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(stdLog), handlers.PrintRecoveryStack(true))(h)
	return handlers.LoggingHandler(stdLog.Writer(), h)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (srv *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		srv.log.Info("inspector listening", zap.String("addr", addr))
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// cull runs one culling pass on the software device and records the result
// for DebugLines.
func (srv *Server) cull(pose camera.Pose, lens camera.Lens, mode culling.Mode) (CullResult, error) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.culler.SetMode(mode)
	cmd := srv.dev.AcquireCommandBuffer()
	stats, err := srv.culler.Cull(cmd, pose.View(), lens.Projection())
	if err != nil {
		return CullResult{}, fmt.Errorf("cull: %w", err)
	}
	h, err := srv.dev.Submit(cmd)
	if err != nil {
		return CullResult{}, fmt.Errorf("submit: %w", err)
	}
	if err := srv.dev.Wait(h); err != nil {
		return CullResult{}, fmt.Errorf("wait: %w", err)
	}
	if err := srv.culler.FrameSubmitted(h); err != nil {
		return CullResult{}, err
	}

	res := CullResult{
		Mode:       stats.Mode.String(),
		Eye:        pose.Eye,
		Target:     pose.Target,
		FovY:       lens.FovY,
		Candidates: stats.Candidates,
	}
	// The dispatch has completed, so the indirect buffer is current even
	// when the GPU visible counter is a frame behind.
	for i, count := range srv.culler.InstanceCounts() {
		if count > 0 {
			res.VisibleNodes = append(res.VisibleNodes, srv.draws.CommandNode(i))
		}
	}
	res.Visible = len(res.VisibleNodes)
	srv.last = res
	srv.log.Debug("inspector cull", zap.String("mode", res.Mode), zap.Int("visible", res.Visible), zap.Int("candidates", res.Candidates))
	return res, nil
}
