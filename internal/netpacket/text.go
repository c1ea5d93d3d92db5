package netpacket

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// ParsedText is a packet's Text payload broken into the fields its
// main-type/minor-type say it carries. Which fields are populated
// depends on the table in Parse.
type ParsedText struct {
	Subtype string // new-post: sub-board subtype; email-by-name: destination name
	Title   string
	Sender  string // display name line
	Date    string // wwivnet time string, see clock.FormatWWIVnetTime
	Body    []byte

	// MainTypeNetInfo/MinorTypeFile only.
	NetInfoFlags    uint16
	NetInfoBasename string
}

// Parse splits raw packet text into its fields according to mainType
// and minorType:
//   - post, pre-post, email:      title NUL sender CRLF date CRLF body
//   - new-post, email-by-name:    subtype-or-to NUL title NUL sender CRLF date CRLF body
//   - net-info, minor=file:       flags u16, basename (<=8 bytes) NUL, payload bytes
//   - net-info, other minors:     raw replacement content, untouched
//   - everything else:            body only
func Parse(mainType, minorType uint16, text []byte) (ParsedText, error) {
	switch mainType {
	case MainTypePost, MainTypePrePost, MainTypeEmail:
		title, rest, err := splitNulField(text)
		if err != nil {
			return ParsedText{}, fmt.Errorf("netpacket: parse title: %w", err)
		}
		sender, date, body, err := splitHeaderLines(rest)
		if err != nil {
			return ParsedText{}, err
		}
		return ParsedText{Title: title, Sender: sender, Date: date, Body: body}, nil

	case MainTypeNewPost, MainTypeEmailName:
		subtype, rest, err := splitNulField(text)
		if err != nil {
			return ParsedText{}, fmt.Errorf("netpacket: parse subtype: %w", err)
		}
		title, rest, err := splitNulField(rest)
		if err != nil {
			return ParsedText{}, fmt.Errorf("netpacket: parse title: %w", err)
		}
		sender, date, body, err := splitHeaderLines(rest)
		if err != nil {
			return ParsedText{}, err
		}
		return ParsedText{Subtype: subtype, Title: title, Sender: sender, Date: date, Body: body}, nil

	case MainTypeNetInfo:
		if minorType != MinorTypeFile {
			return ParsedText{Body: text}, nil
		}
		if len(text) < 2 {
			return ParsedText{}, fmt.Errorf("netpacket: net-info file payload too short for flags")
		}
		flags := binary.LittleEndian.Uint16(text[:2])
		basename, body, err := splitNulField(text[2:])
		if err != nil {
			return ParsedText{}, fmt.Errorf("netpacket: parse net-info basename: %w", err)
		}
		return ParsedText{NetInfoFlags: flags, NetInfoBasename: basename, Body: body}, nil

	default:
		return ParsedText{Body: text}, nil
	}
}

// Build is the inverse of Parse: it reassembles the payload for
// mainType/minorType from parsed.
func Build(mainType, minorType uint16, parsed ParsedText) []byte {
	switch mainType {
	case MainTypePost, MainTypePrePost, MainTypeEmail:
		return joinNul(parsed.Title, string(joinHeaderLines(parsed.Sender, parsed.Date, parsed.Body)))
	case MainTypeNewPost, MainTypeEmailName:
		return joinNul(parsed.Subtype, parsed.Title, string(joinHeaderLines(parsed.Sender, parsed.Date, parsed.Body)))
	case MainTypeNetInfo:
		if minorType != MinorTypeFile {
			return parsed.Body
		}
		out := make([]byte, 2, 2+len(parsed.NetInfoBasename)+1+len(parsed.Body))
		binary.LittleEndian.PutUint16(out, parsed.NetInfoFlags)
		out = append(out, parsed.NetInfoBasename...)
		out = append(out, 0)
		out = append(out, parsed.Body...)
		return out
	default:
		return parsed.Body
	}
}

// splitNulField pulls one NUL-terminated string off the front of data.
func splitNulField(data []byte) (field string, rest []byte, err error) {
	i := bytes.IndexByte(data, 0)
	if i < 0 {
		return "", nil, fmt.Errorf("missing NUL terminator")
	}
	return string(data[:i]), data[i+1:], nil
}

// splitHeaderLines splits "sender CRLF date CRLF body" into its three
// parts.
func splitHeaderLines(data []byte) (sender, date string, body []byte, err error) {
	i := bytes.Index(data, crlf)
	if i < 0 {
		return "", "", nil, fmt.Errorf("netpacket: missing sender CRLF")
	}
	sender = string(data[:i])
	rest := data[i+2:]

	j := bytes.Index(rest, crlf)
	if j < 0 {
		return "", "", nil, fmt.Errorf("netpacket: missing date CRLF")
	}
	date = string(rest[:j])
	body = rest[j+2:]
	return sender, date, body, nil
}

func joinHeaderLines(sender, date string, body []byte) []byte {
	out := make([]byte, 0, len(sender)+len(date)+len(body)+4)
	out = append(out, sender...)
	out = append(out, crlf...)
	out = append(out, date...)
	out = append(out, crlf...)
	out = append(out, body...)
	return out
}

// joinHeaderLines' output is itself passed to joinNul as the last
// field, so crlf (not a NUL) is the only separator it introduces.
var crlf = []byte("\r\n")

func joinNul(fields ...string) []byte {
	var out []byte
	for _, f := range fields[:len(fields)-1] {
		out = append(out, f...)
		out = append(out, 0)
	}
	out = append(out, fields[len(fields)-1]...)
	return out
}

// routeMarker is the suffix PrependRoute searches body for to decide
// whether this hop has already stamped a routing line: "our own node"
// appearing anywhere in the trail means this packet already passed
// through us, even if another hop's annotation now sits ahead of it.
func routeMarker(node uint16) string {
	return fmt.Sprintf("->%d\r\n", node)
}

// maxRoutedBodySize is the 32 KiB ceiling past which a routing
// annotation is dropped rather than added, so a packet that has
// already accumulated a long routing trail does not grow without
// bound.
const maxRoutedBodySize = 32 * 1024

// PrependRoute adds a routing annotation line to body identifying the
// hop at node on network netName, ahead of the rest of body. body here
// is the main-type's Body field (already past its fixed title/sender/
// date fields), so the annotation lands immediately after those fixed
// header lines once ParsedText is reassembled with Build. Adding is
// idempotent by substring match against node, so re-dispatching a
// packet that already passed through this node does not stack
// duplicate lines; it is skipped entirely, rather than applied, once
// doing so would push body past maxRoutedBodySize.
func PrependRoute(body []byte, version, netName string, node uint16, when time.Time) []byte {
	marker := routeMarker(node)
	if bytes.Contains(body, []byte(marker)) {
		return body
	}
	line := fmt.Sprintf("\x04 0R %s - %s %s %s %s",
		version, when.Format("01/02/06"), when.Format("15:04:05"), netName, marker)
	if len(line)+len(body) > maxRoutedBodySize {
		return body
	}
	out := make([]byte, 0, len(line)+len(body))
	out = append(out, line...)
	out = append(out, body...)
	return out
}
