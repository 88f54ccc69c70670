package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/darmiel/lastword/internal/audit"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/crypto"
	"github.com/darmiel/lastword/internal/logging"
	"github.com/darmiel/lastword/internal/messages"
)

// DefaultInviteConcurrency bounds parallel invitation sends.
const DefaultInviteConcurrency = 3

// InvitationService issues and verifies contact invitations.
//
// Signatures are deterministic: the same (owner, contact) pair always gets the same signature
// and it never expires. Verification needs no stored invitation list, at the price that a
// leaked signature can be replayed until the shared secret is rotated.
type InvitationService struct {
	signer     *crypto.Signer
	dispatcher core.Dispatcher
	composer   *messages.Composer
	auditor    core.Auditor

	concurrency int
	stagger     time.Duration
	now         func() time.Time
}

func NewInvitationService(
	signer *crypto.Signer,
	dispatcher core.Dispatcher,
	composer *messages.Composer,
	auditor core.Auditor,
	concurrency int,
	stagger time.Duration,
) *InvitationService {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if concurrency <= 0 {
		concurrency = DefaultInviteConcurrency
	}
	if stagger < 0 {
		stagger = 0
	}
	return &InvitationService{
		signer:      signer,
		dispatcher:  dispatcher,
		composer:    composer,
		auditor:     auditor,
		concurrency: concurrency,
		stagger:     stagger,
		now:         time.Now,
	}
}

func invitationPayload(owner, contact string) ([]byte, error) {
	return crypto.Canonicalize(map[string]string{
		"contact": contact,
		"owner":   owner,
		"usage":   core.UsageInvitation,
	})
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Issue signs the (owner, contact) pair. It is pure and deterministic.
func (s *InvitationService) Issue(owner, contact string) (*core.InvitationToken, error) {
	owner, contact = normalizeAddress(owner), normalizeAddress(contact)
	if owner == "" || contact == "" {
		return nil, invalidInput(fmt.Errorf("owner and contact are required"))
	}
	payload, err := invitationPayload(owner, contact)
	if err != nil {
		return nil, fmt.Errorf("encoding invitation payload: %w", err)
	}
	return &core.InvitationToken{
		Owner:     owner,
		Contact:   contact,
		Usage:     core.UsageInvitation,
		Signature: hex.EncodeToString(s.signer.Sign(payload)),
	}, nil
}

// Verify recomputes the signature for the claimed pair and compares in constant time.
// The signature may carry the "lwi_" reference prefix.
func (s *InvitationService) Verify(owner, contact, signature string) bool {
	owner, contact = normalizeAddress(owner), normalizeAddress(contact)
	if owner == "" || contact == "" {
		return false
	}
	sig, err := hex.DecodeString(messages.StripInvitationPrefix(strings.TrimSpace(signature)))
	if err != nil || len(sig) == 0 {
		return false
	}
	payload, err := invitationPayload(owner, contact)
	if err != nil {
		return false
	}
	return s.signer.Verify(payload, sig)
}

// Invite issues an invitation for every contact and sends it through the dispatcher.
// Sends run with bounded concurrency and a fixed stagger between their starts. A failed send
// never aborts the others: the result holds one entry per distinct contact, in input order.
func (s *InvitationService) Invite(ctx context.Context, owner string, contacts []string) ([]core.InviteResult, error) {
	owner = normalizeAddress(owner)
	if owner == "" {
		return nil, invalidInput(fmt.Errorf("owner is required"))
	}
	unique := dedupeContacts(owner, contacts)
	if len(unique) == 0 {
		return nil, invalidInput(fmt.Errorf("no contacts given"))
	}

	logger := log.Ctx(ctx)
	results := make([]core.InviteResult, len(unique))

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for i, contact := range unique {
		results[i].Contact = contact

		if i > 0 && s.stagger > 0 {
			if err := sleepCtx(ctx, s.stagger); err != nil {
				results[i].Error = err.Error()
				continue
			}
		}

		g.Go(func() error {
			results[i] = s.inviteOne(ctx, owner, contact)
			return nil
		})
	}
	_ = g.Wait()

	var sent int
	for _, r := range results {
		if r.Sent {
			sent++
		}
	}
	logger.Info().
		Int("contacts", len(results)).
		Int("sent", sent).
		Msg("invitation fan-out finished")
	return results, nil
}

func (s *InvitationService) inviteOne(ctx context.Context, owner, contact string) core.InviteResult {
	res := core.InviteResult{Contact: contact}

	tok, err := s.Issue(owner, contact)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Signature = tok.Signature

	sendErr := s.dispatcher.Send(ctx, s.composer.Invitation(tok))
	res.Sent = sendErr == nil

	entry := core.AuditEntry{
		ID:          logging.CorrelationID(ctx),
		Time:        s.now().UTC(),
		Action:      "invitation.issue",
		Identity:    contact,
		Success:     res.Sent,
		Fingerprint: audit.Fingerprint(audit.InvitationFingerprintType, tok.Signature),
	}
	if sendErr != nil {
		res.Error = sendErr.Error()
		entry.Error = sendErr.Error()
		log.Ctx(ctx).Warn().Err(sendErr).Str("contact", contact).Msg("failed to send invitation")
	}
	if err := s.auditor.Log(entry); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to write audit log entry")
	}
	return res
}

// dedupeContacts normalizes contacts and drops empties, duplicates and the owner itself.
func dedupeContacts(owner string, contacts []string) []string {
	seen := make(map[string]struct{}, len(contacts))
	out := make([]string, 0, len(contacts))
	for _, c := range contacts {
		c = normalizeAddress(c)
		if c == "" || c == owner {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
