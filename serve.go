package main

import (
	"errors"
	"flag"
	"net/http"
	"strconv"
	"sync"

	"github.com/golang/glog"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/RolandMax/ETM/IO"
	"github.com/RolandMax/ETM/etm"
	"github.com/RolandMax/ETM/params"
)

// predictServer answers read-only prediction requests against one model.
type predictServer struct {
	mu        sync.RWMutex
	model     *etm.Model
	batchSize int
	normalize bool
}

type topicsRequest struct {
	Docs []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"docs"`
}

type docTopics struct {
	ID    string    `json:"id"`
	Theta []float64 `json:"theta"`
}

type topicsResponse struct {
	Docs        []docTopics `json:"docs"`
	WeightedAvg []float64   `json:"weighted_avg"`
}

func runServe(cfg params.Config, addr string) error {
	m, err := etm.Load(modelPath)
	if err != nil {
		return err
	}
	s := &predictServer{model: m, batchSize: cfg.Train.BatchSize, normalize: predictNormalize(flag.CommandLine, m, cfg)}
	glog.Infof("serve: model %s on %s", m.RunID, addr)
	return s.routes().Start(addr)
}

func (s *predictServer) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.GET("/terms", s.terms)
	e.POST("/topics", s.topics)
	return e
}

// GET /terms?top=N
func (s *predictServer) terms(c echo.Context) error {
	top := 10
	if q := c.QueryParam("top"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "top must be a positive integer")
		}
		top = n
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(http.StatusOK, s.model.PredictTerms(top))
}

// POST /topics {"docs": [{"id": "...", "text": "..."}]}
func (s *predictServer) topics(c echo.Context) error {
	var req topicsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Docs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no documents")
	}
	texts := make([]string, len(req.Docs))
	ids := make([]string, len(req.Docs))
	for i, d := range req.Docs {
		texts[i], ids[i] = d.Text, d.ID
		if ids[i] == "" {
			ids[i] = strconv.Itoa(i)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := IO.CountAgainstVocab(texts, ids, s.model.Vocab)
	pred, err := s.model.PredictTopics(docs, s.batchSize, s.normalize)
	if errors.Is(err, etm.ErrZeroDocument) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if err != nil {
		return err
	}

	resp := topicsResponse{Docs: make([]docTopics, len(pred.DocIDs)), WeightedAvg: pred.WeightedAvg}
	for d, id := range pred.DocIDs {
		resp.Docs[d] = docTopics{ID: id, Theta: append([]float64(nil), pred.Theta.RawRowView(d)...)}
	}
	return c.JSON(http.StatusOK, resp)
}
