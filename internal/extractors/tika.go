package extractors

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/google/go-tika/tika"
	"github.com/larkwiot/shelf/internal/config"
)

type TikaServer struct {
	url    string
	client *http.Client
}

func NewTikaServer(conf *config.TikaConfig) *TikaServer {
	return &TikaServer{
		url:    fmt.Sprintf("http://%s:%d", conf.Host, conf.Port),
		client: http.DefaultClient,
	}
}

func (ts *TikaServer) Name() string {
	return "Tika"
}

func (ts *TikaServer) Accepts(string) bool {
	return true
}

func (ts *TikaServer) ExtractText(ctx context.Context, path string, maxCharacters uint) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("tika unable to open file %s: %w", path, err)
	}
	defer fh.Close()

	// tika.Client is not safe for concurrent use, and creating one is cheap
	client := tika.NewClient(ts.client, ts.url)

	body, err := client.ParseReader(ctx, fh)
	if err != nil {
		return "", fmt.Errorf("tika failed to parse file %s: %w", path, err)
	}
	defer body.Close()

	text, err := readUpTo(body, maxCharacters)
	if err != nil {
		return "", fmt.Errorf("tika failed to read response for file %s: %w", path, err)
	}
	return text, nil
}
