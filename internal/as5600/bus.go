package as5600

import "tinygo.org/x/drivers"

// TinyGo board buses plug in directly.
var _ Bus = drivers.I2C(nil)
