// Package xmpp implements a minimal XMPP (RFC 6120) client: just enough
// stream negotiation, STARTTLS, SASL PLAIN and resource binding to send and
// receive one-to-one and MUC chat messages. It is not a general-purpose
// XMPP library — no PubSub, no roster management, no message receipts.
package xmpp

import (
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

const (
	nsStream  = "http://etherx.jabber.org/streams"
	nsClient  = "jabber:client"
	nsTLS     = "urn:ietf:params:xml:ns:xmpp-tls"
	nsSASL    = "urn:ietf:params:xml:ns:xmpp-sasl"
	nsBind    = "urn:ietf:params:xml:ns:xmpp-bind"
	nsMUC     = "http://jabber.org/protocol/muc"
	dialTime  = 10 * time.Second
	tlsBudget = 10 * time.Second
)

// JID is a parsed Jabber ID: local@domain/resource.
type JID struct {
	Local    string
	Domain   string
	Resource string
}

// ParseJID splits a JID string into its local, domain and resource parts.
func ParseJID(s string) (JID, error) {
	var j JID
	rest := s
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		j.Resource = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		j.Local = rest[:i]
		j.Domain = rest[i+1:]
	} else {
		j.Domain = rest
	}
	if j.Domain == "" {
		return j, fmt.Errorf("xmpp: JID %q has no domain", s)
	}
	return j, nil
}

// Bare returns the local@domain form without a resource.
func (j JID) Bare() string {
	if j.Local == "" {
		return j.Domain
	}
	return j.Local + "@" + j.Domain
}

func (j JID) String() string {
	s := j.Bare()
	if j.Resource != "" {
		s += "/" + j.Resource
	}
	return s
}

// Stanza is a generic decoded top-level stream child (message, presence, iq).
type Stanza struct {
	XMLName xml.Name
	From    string `xml:"from,attr"`
	To      string `xml:"to,attr"`
	Type    string `xml:"type,attr"`
	ID      string `xml:"id,attr"`
	Body    string `xml:"body"`
	Error   *struct {
		Text string `xml:",chardata"`
	} `xml:"error"`
}

// Options configures a Client connection.
type Options struct {
	JID           string
	Password      string
	Host          string // "host:port" override for the SRV/A lookup
	Resource      string
	SkipTLSVerify bool
}

// Client is a minimal synchronous XMPP stream client.
type Client struct {
	conn   net.Conn
	dec    *xml.Decoder
	jid    JID
	domain string // ASCII (IDNA) form used on the wire
}

// Dial connects, negotiates STARTTLS, authenticates via SASL PLAIN and binds
// a resource, returning a ready-to-use Client.
func Dial(opts Options) (*Client, error) {
	jid, err := ParseJID(opts.JID)
	if err != nil {
		return nil, err
	}
	if opts.Resource != "" {
		jid.Resource = opts.Resource
	} else if jid.Resource == "" {
		jid.Resource = "moltis"
	}

	asciiDomain, err := idna.ToASCII(jid.Domain)
	if err != nil {
		return nil, fmt.Errorf("xmpp: invalid domain %q: %w", jid.Domain, err)
	}

	addr := opts.Host
	if addr == "" {
		addr = net.JoinHostPort(asciiDomain, "5222")
	}

	conn, err := net.DialTimeout("tcp", addr, dialTime)
	if err != nil {
		return nil, fmt.Errorf("xmpp: dial %s: %w", addr, err)
	}

	c := &Client{conn: conn, jid: jid, domain: asciiDomain}

	if err := c.openStream(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := c.startTLS(opts.SkipTLSVerify); err != nil {
		conn.Close()
		return nil, err
	}

	if err := c.authenticate(opts.Password); err != nil {
		conn.Close()
		return nil, err
	}

	if err := c.bindResource(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := c.sendRaw(`<presence/>`); err != nil {
		conn.Close()
		return nil, err
	}

	return c, nil
}

func (c *Client) sendRaw(s string) error {
	_, err := io.WriteString(c.conn, s)
	return err
}

// openStream writes the opening stream header and skips to the first
// <stream:features> element, reinitializing the XML decoder against conn.
func (c *Client) openStream() error {
	c.dec = xml.NewDecoder(c.conn)
	header := fmt.Sprintf(
		"<?xml version='1.0'?><stream:stream to='%s' xmlns='%s' xmlns:stream='%s' version='1.0'>",
		c.domain, nsClient, nsStream)
	if err := c.sendRaw(header); err != nil {
		return err
	}
	return c.skipToFeatures()
}

// skipToFeatures discards the <stream:stream> start tag and waits for the
// server's <stream:features> element, returning once it's drained.
func (c *Client) skipToFeatures() error {
	for {
		tok, err := c.dec.Token()
		if err != nil {
			return fmt.Errorf("xmpp: reading stream header: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local == "features" {
			// Features content (mechanisms, starttls) isn't needed: we drive
			// STARTTLS and PLAIN auth unconditionally.
			return c.dec.Skip()
		}
	}
}

func (c *Client) startTLS(skipVerify bool) error {
	if err := c.sendRaw(fmt.Sprintf(`<starttls xmlns='%s'/>`, nsTLS)); err != nil {
		return err
	}
	for {
		tok, err := c.dec.Token()
		if err != nil {
			return fmt.Errorf("xmpp: starttls negotiation: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "proceed":
			c.dec.Skip()
			tlsConn := tls.Client(c.conn, &tls.Config{
				ServerName:         c.domain,
				InsecureSkipVerify: skipVerify,
			})
			if err := tlsConn.SetDeadline(time.Now().Add(tlsBudget)); err != nil {
				return err
			}
			if err := tlsConn.Handshake(); err != nil {
				return fmt.Errorf("xmpp: tls handshake: %w", err)
			}
			tlsConn.SetDeadline(time.Time{})
			c.conn = tlsConn
			return c.openStream()
		case "failure":
			c.dec.Skip()
			return fmt.Errorf("xmpp: server refused starttls")
		default:
			c.dec.Skip()
		}
	}
}

func (c *Client) authenticate(password string) error {
	payload := "\x00" + c.jid.Local + "\x00" + password
	b64 := base64.StdEncoding.EncodeToString([]byte(payload))
	auth := fmt.Sprintf(`<auth mechanism='PLAIN' xmlns='%s'>%s</auth>`, nsSASL, b64)
	if err := c.sendRaw(auth); err != nil {
		return err
	}
	for {
		tok, err := c.dec.Token()
		if err != nil {
			return fmt.Errorf("xmpp: sasl negotiation: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "success":
			c.dec.Skip()
			return c.openStream()
		case "failure":
			c.dec.Skip()
			return fmt.Errorf("xmpp: sasl authentication rejected")
		default:
			c.dec.Skip()
		}
	}
}

func (c *Client) bindResource() error {
	req := fmt.Sprintf(
		`<iq type='set' id='bind1'><bind xmlns='%s'><resource>%s</resource></bind></iq>`,
		nsBind, c.jid.Resource)
	if err := c.sendRaw(req); err != nil {
		return err
	}
	for {
		tok, err := c.dec.Token()
		if err != nil {
			return fmt.Errorf("xmpp: resource bind: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "iq" {
			continue
		}
		var iq struct {
			Type string `xml:"type,attr"`
			Bind struct {
				JID string `xml:"jid"`
			} `xml:"bind"`
		}
		if err := c.dec.DecodeElement(&iq, &se); err != nil {
			return fmt.Errorf("xmpp: decode bind response: %w", err)
		}
		if iq.Type != "result" {
			return fmt.Errorf("xmpp: resource bind failed (type=%s)", iq.Type)
		}
		if iq.Bind.JID != "" {
			if bound, err := ParseJID(iq.Bind.JID); err == nil {
				c.jid = bound
			}
		}
		return nil
	}
}

// JoinRoom sends MUC presence to join a room with the given nickname.
func (c *Client) JoinRoom(roomJID, nickname string) error {
	presence := fmt.Sprintf(`<presence to='%s/%s'><x xmlns='%s'/></presence>`,
		xmlEscape(roomJID), xmlEscape(nickname), nsMUC)
	return c.sendRaw(presence)
}

// SendMessage sends a one-to-one chat message.
func (c *Client) SendMessage(to, body string) error {
	return c.send(to, "chat", body)
}

// SendGroupMessage sends a message to a MUC room.
func (c *Client) SendGroupMessage(roomJID, body string) error {
	return c.send(roomJID, "groupchat", body)
}

func (c *Client) send(to, kind, body string) error {
	msg := fmt.Sprintf(`<message to='%s' type='%s'><body>%s</body></message>`,
		xmlEscape(to), kind, xmlEscape(body))
	return c.sendRaw(msg)
}

// Next blocks until the next top-level message/presence/iq stanza arrives.
func (c *Client) Next() (*Stanza, error) {
	for {
		tok, err := c.dec.Token()
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "message", "presence", "iq":
			var s Stanza
			if err := c.dec.DecodeElement(&s, &se); err != nil {
				return nil, fmt.Errorf("xmpp: decode stanza: %w", err)
			}
			return &s, nil
		default:
			c.dec.Skip()
		}
	}
}

// Close sends the closing stream tag and closes the connection.
func (c *Client) Close() error {
	c.sendRaw("</stream:stream>")
	return c.conn.Close()
}

func xmlEscape(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}
