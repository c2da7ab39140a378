// Package hashicorp provides a savex.PasswordSource backed by the HashiCorp
// Vault KV v2 secrets engine.
//
// Archive passwords are kept out of configuration files and environment
// variables: the engine asks Vault for the password of an alias whenever a
// configuration enables AES without carrying a password.
//
// # Basic Usage
//
//	import (
//	    "github.com/hengadev/savex"
//	    vaultkv "github.com/hengadev/savex/providers/secrets/hashicorp"
//	)
//
//	passwords, err := vaultkv.NewPasswordStore("my-game")
//	if err != nil {
//	    // handle error
//	}
//
//	engine, err := savex.New(savex.WithPasswordSource(passwords))
//	cfg, _ := engine.Config("slot1.pak", savex.WithEncryption(""))
//
// # Configuration
//
// Vault is configured via environment variables:
//
//	// Required
//	export VAULT_ADDR="https://vault.example.com:8200"
//	export VAULT_TOKEN="hvs.your-token-here"
//
//	// Optional
//	export VAULT_NAMESPACE="my-namespace"  // For Vault Enterprise
//	export VAULT_ROLE_ID="..."             // AppRole, with VAULT_SECRET_ID
//
// # Password Storage
//
// Passwords are stored in Vault KV using the path format:
//
//	secret/data/savex/{alias}/password
//
// The Vault token needs the following policy:
//
//	path "secret/data/savex/*" {
//	    capabilities = ["create", "read", "update"]
//	}
//
// # Versioning
//
// KV v2 versions every write. Rolling a password back with
// `vault kv rollback` makes archives written under the old password
// readable again.
package hashicorp
