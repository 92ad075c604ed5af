package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chenBenjamin97/pose-compare/pkg/compare"
	"github.com/chenBenjamin97/pose-compare/pkg/config"
	"github.com/chenBenjamin97/pose-compare/pkg/render"
	"github.com/chenBenjamin97/pose-compare/pkg/utils"
)

//Deps are the collaborators the server hands to sessions
type Deps struct {
	//OpenSource opens the uploaded video at path
	OpenSource func(path string) (compare.Source, error)
	Estimators compare.EstimatorFactory
	//Encode turns a frame into the image returned with every sample, nil disables sample images
	Encode func(compare.Frame) ([]byte, error)
}

//Server serves uploads, playback and comparison sessions
type Server struct {
	cfg  *config.Config
	deps Deps
	log  *slog.Logger

	first  *render.Renderer
	second *render.Renderer

	mu       sync.RWMutex
	sessions map[uuid.UUID]*compare.Session
}

//NewServer returns a server with no sessions
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		deps:     deps,
		log:      logger,
		first:    render.NewRenderer(cfg.Render, render.DefaultProfile()),
		second:   render.NewRenderer(cfg.Render, render.SecondProfile()),
		sessions: make(map[uuid.UUID]*compare.Session),
	}
}

//SetRouter builds the gin engine with every route of the service
func (s *Server) SetRouter() *gin.Engine {
	r := gin.Default()

	//serve html pages to client
	r.Static("/client", s.cfg.Frontend.StaticFilesPath)
	r.StaticFile("/", filepath.Join(s.cfg.Frontend.StaticFilesPath, "index.html"))

	apiRoutes := r.Group("/api")

	apiRoutes.GET("/Videos", s.listVideos)
	apiRoutes.POST("/Upload", s.upload)
	apiRoutes.GET("/Play", s.play)

	apiRoutes.POST("/Sessions", s.createSession)
	apiRoutes.GET("/Sessions/:id", s.sessionStatus)
	apiRoutes.DELETE("/Sessions/:id", s.deleteSession)
	apiRoutes.POST("/Sessions/:id/Process", s.processRange)
	apiRoutes.POST("/Sessions/:id/Compare", s.comparePairs)
	apiRoutes.GET("/Sessions/:id/Samples/:n", s.sample)
	apiRoutes.POST("/Sessions/:id/Next", s.next)
	apiRoutes.POST("/Sessions/:id/Prev", s.prev)

	return r
}

//Close ends every session
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if err := sess.Close(); err != nil {
			s.log.Warn("api: Error closing session", "session", id, "err", err)
		}
		delete(s.sessions, id)
	}
}

func (s *Server) listVideos(ctx *gin.Context) {
	if names, err := utils.ListVideos(s.cfg.Directory.Source); err != nil {
		s.log.Error("api/Videos: Error listing uploads", "err", err)
		ctx.Status(http.StatusInternalServerError)
	} else {
		ctx.JSON(http.StatusOK, names)
	}
}

func (s *Server) upload(ctx *gin.Context) {
	file, fHeader, err := ctx.Request.FormFile("video")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing 'video' form file"})
		return
	}
	defer file.Close()

	srcFilePath, err := utils.SafeJoin(s.cfg.Directory.Source, fHeader.Filename)
	if err != nil || !utils.IsVideoName(fHeader.Filename) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file name"})
		return
	}

	if existNames, err := utils.ListDir(s.cfg.Directory.Source); err != nil {
		ctx.Status(http.StatusInternalServerError)
		return
	} else if utils.InSlice(fHeader.Filename, existNames) {
		ctx.Status(http.StatusNotAcceptable)
		return
	}

	s.log.Info("api/Upload: received new file", "name", fHeader.Filename, "bytes", fHeader.Size)

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		s.log.Error("api/Upload: could not read request's body", "err", err)
		ctx.Status(http.StatusInternalServerError)
		return
	}

	if err = os.WriteFile(srcFilePath, fileBytes, 0444); err != nil {
		s.log.Error("api/Upload: could not write file", "path", srcFilePath, "err", err)
		ctx.Status(http.StatusInternalServerError)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"name": fHeader.Filename})
}

func (s *Server) play(ctx *gin.Context) {
	videoName := ctx.Query("name")
	if videoName == "" {
		ctx.Status(http.StatusNotAcceptable) //missing url parameter
		return
	}

	videoPath, err := s.videoPath(videoName)
	if err != nil {
		ctx.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}

	if ct := mime.TypeByExtension(filepath.Ext(videoName)); ct != "" {
		ctx.Header("Content-Type", ct)
	}
	http.ServeFile(ctx.Writer, ctx.Request, videoPath)
}

//videoPath resolves an uploaded video name, the error maps to 400 for bad names and 404 for missing files
func (s *Server) videoPath(name string) (string, error) {
	path, err := utils.SafeJoin(s.cfg.Directory.Source, name)
	if err != nil {
		return "", &badRequestError{err}
	}
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Server) createSession(ctx *gin.Context) {
	opts := s.cfg.SessionOptions()
	opts.Encode = s.deps.Encode
	sess := compare.NewSession(s.deps.Estimators, opts, s.log)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.log.Info("api/Sessions: created session", "session", sess.ID)
	ctx.JSON(http.StatusCreated, gin.H{"id": sess.ID})
}

//session looks up the session named by the :id parameter, replying 404 itself when there is none
func (s *Server) session(ctx *gin.Context) (*compare.Session, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err == nil {
		s.mu.RLock()
		sess, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok {
			return sess, true
		}
	}
	ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
	return nil, false
}

func (s *Server) sessionStatus(ctx *gin.Context) {
	sess, ok := s.session(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"id":      sess.ID,
		"running": sess.Running(),
		"samples": sess.Len(),
		"cursor":  sess.Cursor(),
	})
}

func (s *Server) deleteSession(ctx *gin.Context) {
	sess, ok := s.session(ctx)
	if !ok {
		return
	}

	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()

	if err := sess.Close(); err != nil {
		s.log.Warn("api/Sessions: Error closing session", "session", sess.ID, "err", err)
	}
	ctx.Status(http.StatusNoContent)
}

//processRequest bounds take frame indices, startMs/endMs playback offsets override them when set
type processRequest struct {
	Video   string `json:"video" binding:"required"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	StartMs *int64 `json:"startMs,omitempty"`
	EndMs   *int64 `json:"endMs,omitempty"`
}

type compareRequest struct {
	Video1   string `json:"video1" binding:"required"`
	Start1   int    `json:"start1"`
	End1     int    `json:"end1"`
	StartMs1 *int64 `json:"startMs1,omitempty"`
	EndMs1   *int64 `json:"endMs1,omitempty"`
	Video2   string `json:"video2" binding:"required"`
	Start2   int    `json:"start2"`
	End2     int    `json:"end2"`
	StartMs2 *int64 `json:"startMs2,omitempty"`
	EndMs2   *int64 `json:"endMs2,omitempty"`
}

//frameRange builds the range from frame indices, replacing a bound by the frame shown at its offset when one is given
func frameRange(start, end int, startMs, endMs *int64, fps int) utils.FrameRange {
	at := func(frame int, ms *int64) int {
		if ms == nil {
			return frame
		}
		return utils.FrameAt(time.Duration(*ms)*time.Millisecond, fps)
	}
	return utils.FrameRange{Start: at(start, startMs), End: at(end, endMs)}
}

//openSource resolves and opens one uploaded video
func (s *Server) openSource(name string) (compare.Source, error) {
	path, err := s.videoPath(name)
	if err != nil {
		return nil, err
	}
	return s.deps.OpenSource(path)
}

func (s *Server) processRange(ctx *gin.Context) {
	sess, ok := s.session(ctx)
	if !ok {
		return
	}
	var req processRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	src, err := s.openSource(req.Video)
	if err != nil {
		ctx.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	defer src.Close()

	r := frameRange(req.Start, req.End, req.StartMs, req.EndMs, s.cfg.Sampling.FPS)
	rep, err := sess.ProcessRange(ctx.Request.Context(), src, r, compare.Hooks{})
	if err != nil {
		ctx.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, rep)
}

func (s *Server) comparePairs(ctx *gin.Context) {
	sess, ok := s.session(ctx)
	if !ok {
		return
	}
	var req compareRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	src1, err := s.openSource(req.Video1)
	if err != nil {
		ctx.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	defer src1.Close()

	//the same video on both sides still gets two read heads
	src2, err := s.openSource(req.Video2)
	if err != nil {
		ctx.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	defer src2.Close()

	fps := s.cfg.Sampling.FPS
	rep, err := sess.ComparePairs(ctx.Request.Context(), src1, src2,
		frameRange(req.Start1, req.End1, req.StartMs1, req.EndMs1, fps),
		frameRange(req.Start2, req.End2, req.StartMs2, req.EndMs2, fps), compare.Hooks{})
	if err != nil {
		ctx.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, rep)
}

func (s *Server) sample(ctx *gin.Context) {
	sess, ok := s.session(ctx)
	if !ok {
		return
	}
	n, err := strconv.Atoi(ctx.Param("n"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "sample number must be an integer"})
		return
	}

	sample, err := sess.Seek(n)
	if err != nil {
		ctx.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, s.view(sample, n, sess.Len()))
}

func (s *Server) next(ctx *gin.Context) {
	s.move(ctx, (*compare.Session).Next)
}

func (s *Server) prev(ctx *gin.Context) {
	s.move(ctx, (*compare.Session).Prev)
}

func (s *Server) move(ctx *gin.Context, step func(*compare.Session) (compare.Sample, bool)) {
	sess, ok := s.session(ctx)
	if !ok {
		return
	}
	sample, moved := step(sess)
	if !moved {
		//at either end the cursor stays where it is
		cur, ok := sess.Current()
		if !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"error": compare.ErrNoSample.Error()})
			return
		}
		sample = cur
	}
	ctx.JSON(http.StatusOK, s.view(sample, sess.Cursor(), sess.Len()))
}

type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

//statusOf maps pipeline errors to HTTP status codes
func statusOf(err error) int {
	var rangeErr *utils.InvalidRangeError
	var initErr *compare.InitializationFailure
	var badReq *badRequestError
	switch {
	case errors.As(err, &rangeErr), errors.As(err, &badReq):
		return http.StatusBadRequest
	case errors.Is(err, compare.ErrNoSample), errors.Is(err, compare.ErrClosed), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, compare.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &initErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
