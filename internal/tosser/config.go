package tosser

// Config holds FTN tosser configuration for a single network.
type Config struct {
	Enabled           bool         `json:"enabled"`
	OwnAddress        string       `json:"own_address"`                   // e.g., "21:3/110"
	InboundPath       string       `json:"inbound_path"`                  // e.g., "data/ftn/inbound"
	SecureInboundPath string       `json:"secure_inbound_path,omitempty"` // authenticated inbound
	OutboundPath      string       `json:"outbound_path"`                 // staging dir for outbound .PKT files
	BinkdOutboundPath string       `json:"binkd_outbound_path"`           // binkd outbound dir for ZIP bundles
	TempPath          string       `json:"temp_path"`                     // e.g., "data/ftn/temp"
	DupeDBPath        string       `json:"dupe_db_path"`                  // e.g., "data/ftn/dupes.json"
	PollSeconds       int          `json:"poll_interval_seconds"`         // 0 = manual only
	NetmailAreaTag    string       `json:"netmail_area_tag,omitempty"`    // board tag for messages with no AREA kludge
	BadAreaTag        string       `json:"bad_area_tag,omitempty"`        // board tag for unroutable echomail
	DupeAreaTag       string       `json:"dupe_area_tag,omitempty"`       // board tag for duplicate MSGIDs
	Links             []LinkConfig `json:"links"`
}

// LinkConfig defines an FTN link (uplink/downlink node).
type LinkConfig struct {
	Address   string   `json:"address"`             // e.g., "21:1/100"
	Password  string   `json:"password"`            // Packet password
	Name      string   `json:"name"`                // Human-readable name
	EchoAreas []string `json:"echo_areas"`           // Echo tags routed to this link
	Flavour   string   `json:"flavour,omitempty"`   // Normal (default), Crash, Hold, Direct
}
