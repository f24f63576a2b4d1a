package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hobby-app/marketplace/internal/config"
	"github.com/hobby-app/marketplace/internal/entity"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	ListingCreatedSubject = "listing.created"
	ListingSoldSubject    = "listing.sold"
	ListingLikedSubject   = "listing.liked"
	ListingBidSubject     = "listing.bid"
)

type Publisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

type listingEventPayload struct {
	ListingID string `json:"listing_id"`
	OwnerUID  string `json:"owner_uid,omitempty"`
	ActorUID  string `json:"actor_uid,omitempty"`
}

func NewNATSPublisher(cfg *config.NATSConfig, logger *zap.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Timeout(cfg.ConnectTimeout),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS error", zap.Error(err))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("Successfully connected to NATS", zap.String("url", nc.ConnectedUrl()))

	return &Publisher{nc: nc, logger: logger}, nil
}

func (p *Publisher) PublishListingCreated(ctx context.Context, listing *entity.Listing) error {
	data, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to marshal listing for %s: %w", ListingCreatedSubject, err)
	}
	return p.publish(ListingCreatedSubject, listing.ID, data)
}

func (p *Publisher) PublishListingSold(ctx context.Context, listingID, ownerUID string) error {
	data, err := json.Marshal(listingEventPayload{ListingID: listingID, OwnerUID: ownerUID})
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", ListingSoldSubject, err)
	}
	return p.publish(ListingSoldSubject, listingID, data)
}

func (p *Publisher) PublishListingLiked(ctx context.Context, listingID, actorUID string) error {
	data, err := json.Marshal(listingEventPayload{ListingID: listingID, ActorUID: actorUID})
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", ListingLikedSubject, err)
	}
	return p.publish(ListingLikedSubject, listingID, data)
}

func (p *Publisher) PublishListingBid(ctx context.Context, listingID, actorUID string) error {
	data, err := json.Marshal(listingEventPayload{ListingID: listingID, ActorUID: actorUID})
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", ListingBidSubject, err)
	}
	return p.publish(ListingBidSubject, listingID, data)
}

func (p *Publisher) publish(subject, listingID string, data []byte) error {
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish NATS message",
			zap.String("subject", subject),
			zap.String("listing_id", listingID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish NATS message for %s: %w", subject, err)
	}
	p.logger.Debug("Published NATS message",
		zap.String("subject", subject),
		zap.String("listing_id", listingID),
	)
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil && !p.nc.IsClosed() {
		if err := p.nc.Drain(); err != nil {
			p.logger.Error("Error draining NATS connection", zap.Error(err))
		}
		p.nc.Close()
		p.logger.Info("NATS publisher connection closed")
	}
}
