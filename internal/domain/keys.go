package domain

// KeyPrefix namespaces every key petmatch writes to the shared Valkey/Redis instance.
const KeyPrefix = "petmatch:"
