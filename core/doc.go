// Package core contains the community domain entities, store contracts and the
// Service that orchestrates them. Storage, transport and HTTP adapters depend
// on this package; core must not depend on any of them.
package core
