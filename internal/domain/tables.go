package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	// Gateway
	&Tenant{},
	&Instance{},
	&Message{},
}
