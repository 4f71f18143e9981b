package errors

func BadRequest(reason, msg string) *Error {
	return New(400, reason, msg)
}

func InternalServer(reason, msg string) *Error {
	return New(500, reason, msg)
}

// registry error taxonomy

func Invalid(msg string) *Error {
	return New(InvalidManifestCode, InvalidManifest, msg)
}

func Duplicate(id string) *Error {
	return New(DuplicateIDCode, DuplicateID, "plugin id already registered").WithMetadata(map[string]string{"id": id})
}

func NotFound(id string) *Error {
	return New(PluginNotFoundCode, PluginNotFound, "plugin not registered").WithMetadata(map[string]string{"id": id})
}

func NoProvider(name, rng string) *Error {
	return New(NoCompatibleProviderCode, NoCompatibleProvider, "no compatible healthy provider").WithMetadata(map[string]string{
		"interface": name,
		"range":     rng,
	})
}

func Downgrade(id, name string) *Error {
	return New(VersionDowngradeCode, VersionDowngrade, "replacement would break a healthy dependent").WithMetadata(map[string]string{
		"id":        id,
		"interface": name,
	})
}

func Timeout(op string) *Error {
	return New(LockTimeoutCode, LockTimeout, "registry lock not acquired in time").WithMetadata(map[string]string{"op": op})
}

func Resolution(err error) *Error {
	e := FromError(err)
	return New(ResolutionFailCode, ResolutionFail, e.Message).WithMetadata(e.Metadata).WithError(err)
}
