// Package internal holds the regular expression grammar shared by the name
// package's parsing and validation, following the distribution reference
// format (domain/path:tag@digest).
package internal

import (
	"regexp"

	"github.com/ruasync/ocisync/pkg/ocispec/name/internal/xregexp"
)

var (
	re         = regexp.MustCompile
	literal    = xregexp.Literal
	expression = xregexp.Expression
	optional   = xregexp.Optional
	repeated   = xregexp.Repeated
	group      = xregexp.Group
	anchored   = xregexp.Anchored
)

var (
	// AnchoredDigestRegexp matches valid digests, anchored at the start and
	// end of the matched string.
	AnchoredDigestRegexp = re(anchored(digestPat))

	// AnchoredTagRegexp matches valid tags, anchored at the start and end
	// of the matched string.
	AnchoredTagRegexp = re(anchored(tag))

	// AnchoredDomainRegexp matches valid domains, anchored at the start and
	// end of the matched string.
	AnchoredDomainRegexp = re(anchored(domain))

	// AnchoredIdentifierRegexp is used to check or match an identifier
	// value, anchored at the start and end of the string.
	AnchoredIdentifierRegexp = re(anchored(identifier))

	// AnchoredRemoteNameRegexp is used to check or match a repository name
	// without a registry host prefix, anchored at the start and end of the
	// string.
	AnchoredRemoteNameRegexp = re(anchored(remoteName))
)

const (
	// alphaNumeric defines the alpha numeric atom, typically a component of
	// names. This only allows lower case characters and digits.
	alphaNumeric = `[a-z0-9]+`

	// separator defines the separators allowed to be embedded in name
	// components: one period, one or two underscore, or multiple dashes.
	separator = `(?:[._]|__|[-]*)`

	// ipv6address are enclosed between square brackets and may be
	// represented in many ways; only compressed or uncompressed IPv6 is
	// allowed.
	ipv6address = `\[(?:[a-fA-F0-9:]+)\]`

	// port defines the port number atom without the port separator, e.g. "80".
	port = `[0-9]+`

	// tag matches valid tag names.
	tag = `[\w][\w.-]{0,127}`

	// digestPat matches well-formed digests, including algorithm, e.g.
	// "sha256:<encoded>".
	digestPat = `[A-Za-z][A-Za-z0-9]*(?:[-_+.][A-Za-z][A-Za-z0-9]*)*[:][[:xdigit:]]{32,}`

	// identifier is the format for a content-addressable identifier using
	// sha256. These identifiers are like digests without the algorithm.
	identifier = `([a-f0-9]{64})`
)

var (
	// domainNameComponent restricts the registry domain component of a
	// repository name to start with an alphanumeric character, optionally
	// followed by alphanumerics and dashes.
	domainNameComponent = `(?:[a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9])`

	// domainName defines the structure of potential domain components that
	// may be part of names, a subset of what DNS allows to stay backwards
	// compatible with Docker image names. This includes IPv4 addresses in
	// decimal format.
	domainName = expression(
		domainNameComponent,
		optional(repeated(literal(`.`), domainNameComponent)),
	)

	// host is the structure of potential domains based on the URI Host
	// subcomponent of RFC 3986: a DNS domain name, an IPv4 address, or an
	// IPv6 address between square brackets.
	host = expression(domainName, `|`, ipv6address)

	// domain allowed by the URI Host subcomponent of RFC 3986, to ensure
	// backwards compatibility with Docker image names.
	domain = expression(group(host), optional(literal(`:`), port))

	// pathComponent restricts path components to start with an
	// alphanumeric character, with following parts separated by a
	// separator (one period, one or two underscore, multiple dashes).
	pathComponent = expression(
		alphaNumeric,
		optional(repeated(separator, alphaNumeric)),
	)

	// remoteName matches the remote-name of a repository without the
	// registry host: one or more forward-slash delimited path components,
	// e.g. "library/ubuntu".
	remoteName = expression(
		pathComponent,
		optional(repeated(literal(`/`), pathComponent)),
	)
)
