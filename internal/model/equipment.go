package model

import "fmt"

// EquipSlot is the closed set of equipment slots of a player.
type EquipSlot uint8

const (
	SlotMainHand EquipSlot = iota + 1
	SlotOffHand
	SlotArmor
	SlotAccessory
)

// EquipSlots lists every slot in display order.
var EquipSlots = []EquipSlot{SlotMainHand, SlotOffHand, SlotArmor, SlotAccessory}

func (s EquipSlot) String() string {
	switch s {
	case SlotMainHand:
		return "main_hand"
	case SlotOffHand:
		return "off_hand"
	case SlotArmor:
		return "armor"
	case SlotAccessory:
		return "accessory"
	default:
		return "unknown"
	}
}

// ParseEquipSlot maps a registry or wire name to an EquipSlot.
func ParseEquipSlot(s string) (EquipSlot, error) {
	switch s {
	case "main_hand":
		return SlotMainHand, nil
	case "off_hand":
		return SlotOffHand, nil
	case "armor":
		return SlotArmor, nil
	case "accessory":
		return SlotAccessory, nil
	default:
		return 0, fmt.Errorf("unknown equipment slot %q", s)
	}
}

// InSlot returns the item equipped in slot, or "".
func (p *PlayerState) InSlot(slot EquipSlot) string {
	if p.Equipment == nil {
		return ""
	}
	return p.Equipment[slot]
}

// Wields reports whether item is equipped in either hand.
func (p *PlayerState) Wields(item string) bool {
	return item != "" && (p.InSlot(SlotMainHand) == item || p.InSlot(SlotOffHand) == item)
}

// Equip puts one held unit of item into slot and returns what the slot held
// before. The replaced item stays in the inventory.
func (p *PlayerState) Equip(slot EquipSlot, item string) (string, bool) {
	if p.ItemCount(item) == 0 {
		return "", false
	}
	if p.Equipment == nil {
		p.Equipment = make(map[EquipSlot]string, len(EquipSlots))
	}
	// Один предмет занимает не больше одного слота
	for s, it := range p.Equipment {
		if it == item && s != slot {
			delete(p.Equipment, s)
		}
	}
	prev := p.Equipment[slot]
	p.Equipment[slot] = item
	return prev, true
}

// Unequip clears the slot holding item.
func (p *PlayerState) Unequip(item string) (EquipSlot, bool) {
	for s, it := range p.Equipment {
		if it == item {
			delete(p.Equipment, s)
			return s, true
		}
	}
	return 0, false
}
