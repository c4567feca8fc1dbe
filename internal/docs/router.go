package docs

import (
	"fmt"
	"net/url"
	"strings"
)

// RouteKind enumerates the address forms the provider answers to.
type RouteKind int

const (
	RouteRoots RouteKind = iota + 1
	RouteRoot
	RouteDocument
	RouteChildren
	RouteSearch
)

// Route is one parsed provider address.
type Route struct {
	Kind       RouteKind
	RootID     string
	DocumentID DocumentID
}

// DocumentAddress builds the provider address for one document. The
// identifier is carried as a single escaped segment so a document named
// "children" stays distinguishable from its parent's child listing.
func DocumentAddress(id DocumentID) string {
	return "document/" + url.PathEscape(string(id))
}

// ChildrenAddress builds the provider address for a directory's child listing.
func ChildrenAddress(id DocumentID) string {
	return DocumentAddress(id) + "/children"
}

// MatchURI parses a provider address into a route. Recognized forms:
//
//	roots
//	root/{rootId}
//	document/{id}
//	document/{id}/children
//	search
//
// The document id occupies exactly one segment, percent-escaped. Anything
// else fails with ErrInvalidArgument.
func MatchURI(address string) (*Route, error) {
	address = strings.Trim(address, "/")

	switch {
	case address == "roots":
		return &Route{Kind: RouteRoots}, nil

	case address == "search":
		return &Route{Kind: RouteSearch}, nil

	case strings.HasPrefix(address, "root/"):
		rootID := strings.TrimPrefix(address, "root/")
		if rootID == "" || strings.Contains(rootID, "/") {
			return nil, fmt.Errorf("%w: bad root address %q", ErrInvalidArgument, address)
		}
		return &Route{Kind: RouteRoot, RootID: rootID}, nil

	case strings.HasPrefix(address, "document/"):
		parts := strings.Split(strings.TrimPrefix(address, "document/"), "/")

		kind := RouteDocument
		if len(parts) == 2 && parts[1] == "children" {
			kind = RouteChildren
			parts = parts[:1]
		}
		if len(parts) != 1 || parts[0] == "" {
			return nil, fmt.Errorf("%w: bad document address %q", ErrInvalidArgument, address)
		}

		id, err := url.PathUnescape(parts[0])
		if err != nil || id == "" {
			return nil, fmt.Errorf("%w: bad document address %q", ErrInvalidArgument, address)
		}
		if !strings.HasPrefix(id, "/") {
			id = "/" + id
		}
		return &Route{Kind: kind, DocumentID: DocumentID(id)}, nil

	default:
		return nil, fmt.Errorf("%w: unrecognized address %q", ErrInvalidArgument, address)
	}
}
