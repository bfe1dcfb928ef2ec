package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/progresspay/internal/payapp/domain"
)

var ErrRendererUnavailable = errors.New("document renderer unavailable")

func (s *Service) Document(ctx context.Context, rawID string) (domain.Document, error) {
	if s.renderer == nil {
		return domain.Document{}, ErrRendererUnavailable
	}
	payApp, err := s.Get(ctx, rawID)
	if err != nil {
		return domain.Document{}, err
	}

	content, err := s.renderer.RenderPayApplication(ctx, payApp)
	if err != nil {
		return domain.Document{}, s.wrap("render pay application", err)
	}

	name := fmt.Sprintf("pay application %d %s", payApp.PayAppNumber, payApp.ContractNumber)
	return domain.Document{
		FileName:    slug.Make(name) + ".pdf",
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}
