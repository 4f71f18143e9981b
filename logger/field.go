package logger

type Field struct {
	Key   string
	Value interface{}
}

func Module(m string) Field {
	return Field{
		Key:   "module",
		Value: m,
	}
}

func Plugin(id string) Field {
	return Field{
		Key:   "plugin",
		Value: id,
	}
}

func Error(err error) Field {
	return Field{
		Key:   "error",
		Value: err,
	}
}

func Fields(fields ...Field) map[string]interface{} {
	mp := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		mp[field.Key] = field.Value
	}
	return mp
}
