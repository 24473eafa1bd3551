package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gowebpki/jcs"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
)

const fingerprintLength = 16

type routeFingerprint struct {
	Method      string                       `json:"method"`
	Path        string                       `json:"path"`
	OperationID string                       `json:"operation_id"`
	Summary     string                       `json:"summary"`
	Params      []paramFingerprint           `json:"params"`
	Result      string                       `json:"result"`
	Contracts   []contracts.Metadata         `json:"contracts"`
	Snapshots   []contracts.SnapshotMetadata `json:"snapshots"`
}

type paramFingerprint struct {
	Name        string `json:"name"`
	In          string `json:"in"`
	Required    bool   `json:"required"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Fingerprint hashes everything of routes that ends up in the document: the schema-included
// routes with their signatures and documented contracts. Tables with equal fingerprints render
// equal documents. Route order is significant.
func Fingerprint(routes []Route) (string, error) {
	described := make([]routeFingerprint, 0, len(routes))

	for _, route := range routes {
		if !route.IncludeInSchema {
			continue
		}

		found, err := contracts.Inspect(route.Endpoint)
		if err != nil {
			return "", fmt.Errorf("route %s %s: %w", route.Method, route.Path, err)
		}

		sig := route.Endpoint.Signature()

		rf := routeFingerprint{
			Method:      route.Method,
			Path:        route.Path,
			OperationID: route.OperationID,
			Summary:     route.Summary,
			Params:      make([]paramFingerprint, 0, len(sig.Params)),
			Contracts:   found.Contracts,
			Snapshots:   found.Snapshots,
		}

		if sig.Result != nil {
			rf.Result = sig.Result.String()
		}

		for _, p := range sig.Params {
			pf := paramFingerprint{
				Name:        p.Name,
				In:          string(p.In),
				Required:    p.Required,
				Description: p.Description,
			}
			if p.Type != nil {
				pf.Type = p.Type.String()
			}

			rf.Params = append(rf.Params, pf)
		}

		described = append(described, rf)
	}

	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(described)
	if err != nil {
		return "", fmt.Errorf("marshal route fingerprint: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize route fingerprint: %w", err)
	}

	sum := sha256.Sum256(canonical)

	return hex.EncodeToString(sum[:])[:fingerprintLength], nil
}
