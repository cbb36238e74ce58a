package openfga

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/openfga/go-sdk/client"
)

// model.json defines type module with an unrestricted relation and one can_<action> relation
// per action. can_<action> holds for users granted the action directly or granted unrestricted.
//
//go:embed model.json
var modelJSON []byte

func AuthorizationModel() (client.ClientWriteAuthorizationModelRequest, error) {
	var body client.ClientWriteAuthorizationModelRequest
	if err := json.Unmarshal(modelJSON, &body); err != nil {
		return body, fmt.Errorf("failed to decode authorization model: %w", err)
	}
	return body, nil
}
