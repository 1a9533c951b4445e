package taskpipeline

import (
	"context"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// Fetcher performs the actual network fetch for a request, binding in
// whatever session (cookies, proxy) the pipeline hands it. Concrete
// implementations (plain HTTP, headless browser) live outside this
// package — this interface is the pipeline's only dependency on "how a
// response is obtained", the same separation the teacher draws with its
// own fetcher.Fetcher interface.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request, session *types.Session) (*types.Response, error)
}
