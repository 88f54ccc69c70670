package messages

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/darmiel/lastword/internal/core"
)

// Composer turns domain events into outbound message tuples.
// It never talks to a transport itself.
type Composer struct {
	Sender      string
	Owner       string
	CallbackURL string
}

func NewComposer(sender, owner, callbackURL string) *Composer {
	return &Composer{
		Sender:      sender,
		Owner:       owner,
		CallbackURL: callbackURL,
	}
}

// OwnerNotification tells the owner that a countdown started and how to cancel it.
func (c *Composer) OwnerNotification(inst *core.Instance, releaseAt time.Time) core.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%s requested the release of your content", inst.Identity)
	if inst.Domain != "" {
		fmt.Fprintf(&b, " (domain %s)", inst.Domain)
	}
	b.WriteString(".\n\n")
	fmt.Fprintf(&b, "Unless you cancel, the content will be released on %s.\n\n",
		releaseAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Countdown ID: %s\n", inst.ID)
	fmt.Fprintf(&b, "To cancel, run:\n\n    lastword workflows cancel %s\n", inst.ID)

	return core.Message{
		Sender:         c.Sender,
		Recipient:      c.Owner,
		Subject:        fmt.Sprintf("Release requested by %s [%s]", inst.Identity, inst.ID),
		Body:           b.String(),
		IdempotencyKey: inst.ID + "/notify",
	}
}

// Release carries the protected content to the requester.
func (c *Composer) Release(inst *core.Instance, content []byte) core.Message {
	return core.Message{
		Sender:         c.Sender,
		Recipient:      inst.Identity,
		Subject:        fmt.Sprintf("A message from %s", c.Owner),
		Body:           string(content),
		IdempotencyKey: inst.ID + "/release",
	}
}

// Invitation asks a contact to become a trusted requester.
func (c *Composer) Invitation(tok *core.InvitationToken) core.Message {
	ref := InvitationRef(tok.Signature)

	var b strings.Builder
	fmt.Fprintf(&b, "%s added you as a trusted contact.\n\n", tok.Owner)
	b.WriteString("If you ever need to request the release of their content, reply to this message ")
	b.WriteString("keeping the reference below intact")
	if link := c.callbackLink(tok.Contact, ref); link != "" {
		fmt.Fprintf(&b, ", or open:\n\n    %s\n\n", link)
	} else {
		b.WriteString(".\n\n")
	}
	fmt.Fprintf(&b, "Reference: %s\n", ref)

	return core.Message{
		Sender:         c.Sender,
		Recipient:      tok.Contact,
		Subject:        fmt.Sprintf("%s invited you as a trusted contact", tok.Owner),
		Body:           b.String(),
		IdempotencyKey: "invite/" + tok.Signature,
	}
}

// TriggerToken hands a manually issued trigger token to its requester.
func (c *Composer) TriggerToken(tok *core.TriggerToken) core.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%s issued you a release token.\n\n", c.Owner)
	fmt.Fprintf(&b, "It can be used between %s and %s.\n",
		tok.NotBefore.UTC().Format(time.RFC1123), tok.ExpiresAt.UTC().Format(time.RFC1123))
	b.WriteString("To use it, reply to this message and keep the following line intact:\n\n")
	fmt.Fprintf(&b, "%s\n", WrapToken(tok.Value))

	return core.Message{
		Sender:    c.Sender,
		Recipient: tok.Identity,
		Subject:   fmt.Sprintf("Release token from %s", c.Owner),
		Body:      b.String(),
	}
}

func (c *Composer) callbackLink(contact, ref string) string {
	if c.CallbackURL == "" {
		return ""
	}
	u, err := url.Parse(c.CallbackURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("contact", contact)
	q.Set("ref", ref)
	u.RawQuery = q.Encode()
	return u.String()
}
