package service

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fitforge/wearable-sync-go/internal/audit"
	"github.com/fitforge/wearable-sync-go/internal/config"
	apperrors "github.com/fitforge/wearable-sync-go/internal/errors"
	"github.com/fitforge/wearable-sync-go/internal/model"
	"github.com/fitforge/wearable-sync-go/internal/repository"
	"github.com/fitforge/wearable-sync-go/internal/util"
)

// ConnectionService owns the wearable link lifecycle: authorization
// handshake, token storage, disconnect.
type ConnectionService struct {
	flows          map[model.Provider]Flow
	connRepo       repository.ConnectionRepository
	syncLogRepo    repository.SyncLogRepository
	rewards        Rewarder
	tokenIndex     TokenResolver
	cipher         *util.TokenCipher
	signer         *util.StateSigner
	reconnectBonus bool
}

func NewConnectionService(
	flows []Flow,
	connRepo repository.ConnectionRepository,
	syncLogRepo repository.SyncLogRepository,
	rewards Rewarder,
	tokenIndex TokenResolver,
	cipher *util.TokenCipher,
	signer *util.StateSigner,
	reconnectBonus bool,
) *ConnectionService {
	byProvider := make(map[model.Provider]Flow, len(flows))
	for _, f := range flows {
		byProvider[f.Provider()] = f
	}
	return &ConnectionService{
		flows:          byProvider,
		connRepo:       connRepo,
		syncLogRepo:    syncLogRepo,
		rewards:        rewards,
		tokenIndex:     tokenIndex,
		cipher:         cipher,
		signer:         signer,
		reconnectBonus: reconnectBonus,
	}
}

func (s *ConnectionService) flow(provider model.Provider) (Flow, error) {
	f, ok := s.flows[provider]
	if !ok {
		return nil, apperrors.InvalidInput("provider", string(provider))
	}
	if !f.Configured() {
		return nil, apperrors.NotConfigured(string(provider) + " integration")
	}
	return f, nil
}

// BeginAuth runs the provider's challenge generation and returns the
// redirect URL plus the signed state token for the cookie.
func (s *ConnectionService) BeginAuth(ctx context.Context, userID string, provider model.Provider) (redirectURL, stateToken string, err error) {
	f, err := s.flow(provider)
	if err != nil {
		return "", "", err
	}

	redirectURL, claims, err := f.BeginAuth(ctx)
	if err != nil {
		return "", "", err
	}

	claims.UserID = userID
	claims.Provider = provider
	claims.Timestamp = time.Now().UnixMilli()

	stateToken, err = s.signer.Sign(claims)
	if err != nil {
		return "", "", err
	}
	return redirectURL, stateToken, nil
}

// CompleteAuth verifies the signed state, exchanges the authorization grant,
// encrypts and stores the credentials, and awards the connection bonus.
func (s *ConnectionService) CompleteAuth(ctx context.Context, provider model.Provider, stateToken string, query url.Values) (*model.Connection, error) {
	f, err := s.flow(provider)
	if err != nil {
		return nil, err
	}

	claims, err := s.signer.Verify(stateToken)
	if err != nil {
		return nil, err
	}
	if claims.Provider != provider {
		return nil, apperrors.Conflict("state was issued for a different provider")
	}

	creds, err := f.CompleteAuth(ctx, claims, query)
	if err != nil {
		return nil, err
	}

	encAccess, err := s.cipher.Encrypt(creds.AccessToken)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "encrypt access token", err)
	}
	var encSecondary *string
	if creds.SecondaryToken != nil {
		enc, err := s.cipher.Encrypt(*creds.SecondaryToken)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "encrypt secondary token", err)
		}
		encSecondary = &enc
	}

	prior, err := s.connRepo.FindByUserAndProvider(ctx, claims.UserID, provider)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	conn, err := s.connRepo.Upsert(ctx, model.UpsertConnectionParams{
		UserID:         claims.UserID,
		Provider:       provider,
		AccessToken:    encAccess,
		RefreshToken:   encSecondary,
		TokenExpiresAt: creds.ExpiresAt,
		ProviderUserID: creds.ProviderUserID,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	// Only Garmin resolves webhook items by token; Fitbit is pulled by id.
	if provider == model.ProviderGarmin {
		if prior != nil && prior.AccessToken != nil {
			if old, decErr := s.cipher.Decrypt(*prior.AccessToken); decErr == nil {
				s.tokenIndex.Remove(ctx, old)
			}
		}
		s.tokenIndex.Put(ctx, creds.AccessToken, conn.ID)
	}

	if s.reconnectBonus || prior == nil {
		if err := s.rewards.Credit(ctx, claims.UserID, config.ConnectBonusPoints); err != nil {
			log.Error().Err(err).Str("userId", claims.UserID).Msg("failed to credit connection bonus")
		}
	}

	if _, err := s.syncLogRepo.Create(ctx, model.CreateSyncEventParams{
		UserID:    claims.UserID,
		Provider:  provider,
		EventType: model.EventConnected,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to write connected sync event")
	}

	audit.Log(audit.Event{
		Type:     audit.EventProviderConnected,
		UserID:   claims.UserID,
		Provider: string(provider),
		Details:  map[string]interface{}{"reconnect": prior != nil},
	})

	return conn, nil
}

// Disconnect deactivates the link and clears the stored tokens.
func (s *ConnectionService) Disconnect(ctx context.Context, userID string, provider model.Provider) error {
	conn, err := s.connRepo.FindByUserAndProvider(ctx, userID, provider)
	if err != nil {
		return apperrors.Database(err)
	}
	if conn == nil || !conn.IsActive {
		return apperrors.NotFound("connection")
	}

	if provider == model.ProviderGarmin && conn.AccessToken != nil {
		if plain, decErr := s.cipher.Decrypt(*conn.AccessToken); decErr == nil {
			s.tokenIndex.Remove(ctx, plain)
		}
	}

	if err := s.connRepo.Deactivate(ctx, conn.ID, "disconnected by user"); err != nil {
		return apperrors.Database(err)
	}

	if _, err := s.syncLogRepo.Create(ctx, model.CreateSyncEventParams{
		UserID:    userID,
		Provider:  provider,
		EventType: model.EventDisconnected,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to write disconnected sync event")
	}

	audit.Log(audit.Event{
		Type:     audit.EventProviderDisconnected,
		UserID:   userID,
		Provider: string(provider),
	})
	return nil
}

func (s *ConnectionService) List(ctx context.Context, userID string) ([]model.Connection, error) {
	conns, err := s.connRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return conns, nil
}

func (s *ConnectionService) RecentEvents(ctx context.Context, userID string, limit int) ([]model.SyncEvent, error) {
	events, err := s.syncLogRepo.FindRecentByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return events, nil
}
