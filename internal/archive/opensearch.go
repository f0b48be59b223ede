// Package archive provides an optional OpenSearch write-through for
// analysis reports. The durable sink stays authoritative; indexing is
// best-effort and exists for dashboards and ad-hoc search.
package archive

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/driftwatch-systems/driftwatch/internal/logging"
	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/repository"
)

// Config holds OpenSearch connection settings for the report archive.
type Config struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	IndexPrefix   string
}

// DefaultConfig returns archive defaults for a local OpenSearch.
func DefaultConfig() Config {
	return Config{
		URL:           "https://localhost:9200",
		Username:      "admin",
		Password:      "admin",
		TLSSkipVerify: true,
		IndexPrefix:   "driftwatch-reports",
	}
}

// Archive wraps a ReportSink and indexes every appended report into a
// monthly OpenSearch index. Index failures are logged, never returned:
// the wrapped sink has already accepted the report.
type Archive struct {
	inner    repository.ReportSink
	osClient *opensearch.Client
	prefix   string
	logger   *logging.Logger
}

// New builds an archive around the given sink.
func New(cfg Config, inner repository.ReportSink, logger *logging.Logger) (*Archive, error) {
	if logger == nil {
		logger = logging.Default()
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	prefix := cfg.IndexPrefix
	if prefix == "" {
		prefix = DefaultConfig().IndexPrefix
	}

	return &Archive{
		inner:    inner,
		osClient: client,
		prefix:   prefix,
		logger:   logger,
	}, nil
}

// Ping verifies the cluster is reachable.
func (a *Archive) Ping(ctx context.Context) error {
	req := opensearchapi.InfoRequest{}
	res, err := req.Do(ctx, a.osClient)
	if err != nil {
		return fmt.Errorf("failed to connect to opensearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("opensearch returned error: %s", res.Status())
	}
	return nil
}

// AppendReport appends to the durable sink, then indexes a copy.
func (a *Archive) AppendReport(ctx context.Context, report *models.Report) error {
	if err := a.inner.AppendReport(ctx, report); err != nil {
		return err
	}
	a.index(ctx, report)
	return nil
}

// LatestReport delegates to the durable sink.
func (a *Archive) LatestReport(ctx context.Context, kind models.ReportKind) (*models.Report, error) {
	return a.inner.LatestReport(ctx, kind)
}

func (a *Archive) index(ctx context.Context, report *models.Report) {
	payload, err := json.Marshal(report)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to marshal report for archive", logging.Error(err))
		return
	}

	req := opensearchapi.IndexRequest{
		Index:      a.indexName(report.GeneratedAt),
		DocumentID: report.ID,
		Body:       strings.NewReader(string(payload)),
	}
	res, err := req.Do(ctx, a.osClient)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to archive report",
			logging.ReportKind(string(report.Kind)), logging.Error(err))
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		a.logger.ErrorContext(ctx, "opensearch rejected report",
			logging.ReportKind(string(report.Kind)),
			logging.Error(fmt.Errorf("status %s", res.Status())))
	}
}

// indexName buckets reports into monthly indices under the prefix.
func (a *Archive) indexName(t time.Time) string {
	return fmt.Sprintf("%s-%s", a.prefix, t.UTC().Format("2006.01"))
}
