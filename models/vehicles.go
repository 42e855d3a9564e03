package models

// VehicleCategory is one of the counted vehicle kinds.
type VehicleCategory int

const (
	// VehicleNone marks a class that is detected and drawn but never counted.
	VehicleNone VehicleCategory = iota - 1
	// VehicleCar is COCO "car".
	VehicleCar
	// VehicleMotorcycle is COCO "motorcycle".
	VehicleMotorcycle
	// VehicleBus is COCO "bus".
	VehicleBus
	// VehicleTruck is COCO "truck".
	VehicleTruck

	// NumVehicleCategories is the number of counted categories.
	NumVehicleCategories = 4
)

// COCO class ids of the counted vehicles.
const (
	COCOCar        = 2
	COCOMotorcycle = 3
	COCOBus        = 5
	COCOTruck      = 7
)

var vehicleCategoryNames = [NumVehicleCategories]string{"car", "motorcycle", "bus", "truck"}

// String returns the category name, or "none".
func (c VehicleCategory) String() string {
	if !c.Valid() {
		return "none"
	}
	return vehicleCategoryNames[c]
}

// Valid reports whether c is a counted category.
func (c VehicleCategory) Valid() bool {
	return c >= 0 && c < NumVehicleCategories
}

// VehicleCategories lists the counted categories in counter order.
func VehicleCategories() []VehicleCategory {
	return []VehicleCategory{VehicleCar, VehicleMotorcycle, VehicleBus, VehicleTruck}
}

// VehicleCategoryOf maps a class id from the standard 80-class label list to a
// counted category. Every id other than 2, 3, 5 and 7 maps to VehicleNone.
func VehicleCategoryOf(classID int) VehicleCategory {
	switch classID {
	case COCOCar:
		return VehicleCar
	case COCOMotorcycle:
		return VehicleMotorcycle
	case COCOBus:
		return VehicleBus
	case COCOTruck:
		return VehicleTruck
	default:
		return VehicleNone
	}
}
