package services

import (
	"context"
	"strings"
	"time"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type KeywordAction string

const (
	KeywordNone  KeywordAction = ""
	KeywordStop  KeywordAction = "stop"
	KeywordStart KeywordAction = "start"
	KeywordHelp  KeywordAction = "help"
)

// Carrier-standard keywords, matched on the whole trimmed message.
var smsKeywords = map[string]KeywordAction{
	"STOP":        KeywordStop,
	"STOPALL":     KeywordStop,
	"UNSUBSCRIBE": KeywordStop,
	"CANCEL":      KeywordStop,
	"END":         KeywordStop,
	"QUIT":        KeywordStop,
	"START":       KeywordStart,
	"YES":         KeywordStart,
	"UNSTOP":      KeywordStart,
	"HELP":        KeywordHelp,
	"INFO":        KeywordHelp,
}

func ParseKeyword(body string) KeywordAction {
	return smsKeywords[strings.ToUpper(strings.TrimSpace(body))]
}

type InboundResult struct {
	Action      KeywordAction
	RowsChanged int64
	Reply       string
}

// OptOutService applies STOP/START/HELP replies to both contact tables.
type OptOutService interface {
	HandleInbound(ctx context.Context, fromPhone, body string) (*InboundResult, error)
}

type optOutService struct {
	cfg      *config.Config
	cleaners repositories.CleanerRepository
	managers repositories.ManagerRepository
	catalog  *messageCatalog
	now      func() time.Time
}

func NewOptOutService(cfg *config.Config, cleaners repositories.CleanerRepository, managers repositories.ManagerRepository) (OptOutService, error) {
	catalog, err := loadMessageCatalog()
	if err != nil {
		return nil, err
	}
	return &optOutService{cfg: cfg, cleaners: cleaners, managers: managers, catalog: catalog, now: time.Now}, nil
}

func (s *optOutService) HandleInbound(ctx context.Context, fromPhone, body string) (*InboundResult, error) {
	phone, err := utils.NormalizePhone(fromPhone)
	if err != nil {
		return nil, err
	}
	res := &InboundResult{Action: ParseKeyword(body)}
	if res.Action == KeywordNone {
		return res, nil
	}

	now := s.now()
	for _, table := range []repositories.PhoneContactRepository{s.cleaners, s.managers} {
		var n int64
		switch res.Action {
		case KeywordStop:
			n, err = table.SetOptOut(ctx, phone, now)
		case KeywordStart:
			n, err = table.ClearOptOut(ctx, phone, now)
		}
		if err != nil {
			return nil, err
		}
		res.RowsChanged += n
	}

	res.Reply, err = s.catalog.renderReply(string(res.Action), s.cfg.OrganizationName)
	if err != nil {
		return nil, err
	}
	utils.Logger.Infof("Inbound %s from %s (%d rows)", res.Action, utils.MaskPhone(phone), res.RowsChanged)
	return res, nil
}
