// Package secret resolves named secrets from an ordered chain of backends.
//
// The standard chain (see New) queries, in order:
//   - the process environment, after loading dotenv files (EnvBackend)
//   - the OS keychain under a fixed service namespace (KeychainBackend)
//   - Google Secret Manager, only when the deployment mode is "cloud"
//     (CloudBackend, wrapped with retry for transient failures)
//
// The first present value wins. Absence is not an error: GetSecret reports
// it as found=false. Outcomes, including absence, are cached in a bounded
// LRU until evicted; remote failures are returned and never cached.
//
// Configuration values may reference secrets with the prefix "secretref:":
//   - Full value:  secretref:OPENAI_API_KEY
//   - Inline use:  Bearer secretref:OPENAI_API_KEY
//
// See Resolver.ResolveValue.
package secret
