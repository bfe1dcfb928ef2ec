package pdf

import (
	paydomain "github.com/smallbiznis/progresspay/internal/payapp/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("pdf",
	fx.Provide(fx.Annotate(New, fx.As(new(paydomain.DocumentRenderer)))),
)

// Renderer lays out pay applications as a summary page followed by a
// continuation sheet.
type Renderer struct{}

func New() *Renderer {
	return &Renderer{}
}
