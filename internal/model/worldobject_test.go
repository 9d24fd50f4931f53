package model

import "testing"

func TestEntity_Alive(t *testing.T) {
	tests := []struct {
		name string
		e    *Entity
		want bool
	}{
		{name: "healthy player", e: &Entity{Kind: KindPlayer, Player: &PlayerState{Health: 10}}, want: true},
		{name: "downed player", e: &Entity{Kind: KindPlayer, Player: &PlayerState{Downed: true}}, want: false},
		{name: "living npc", e: &Entity{Kind: KindNPC, NPC: &NPCState{Health: 1}}, want: true},
		{name: "dead npc", e: &Entity{Kind: KindNPC, NPC: &NPCState{Health: 0}}, want: false},
		{name: "projectile", e: &Entity{Kind: KindProjectile, Projectile: &ProjectileState{}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.Alive(); got != tt.want {
				t.Errorf("Alive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntity_CloneIsDeep(t *testing.T) {
	orig := &Entity{
		ID:     1,
		Kind:   KindPlayer,
		Player: &PlayerState{
			Health:    50,
			Items:     map[string]int{Ammo: 3, "bow": 1},
			Equipment: map[EquipSlot]string{SlotMainHand: "bow"},
		},
	}

	c := orig.Clone()
	c.Player.Health = 1
	c.Player.Items[Ammo] = 0
	c.Player.Equipment[SlotMainHand] = ""

	if orig.Player.Equipment[SlotMainHand] != "bow" {
		t.Errorf("original main hand changed to %q", orig.Player.Equipment[SlotMainHand])
	}

	if orig.Player.Health != 50 {
		t.Errorf("original health changed to %v", orig.Player.Health)
	}
	if orig.Player.Items[Ammo] != 3 {
		t.Errorf("original ammo changed to %d", orig.Player.Items[Ammo])
	}
}

func TestPlayerState_TakeItem(t *testing.T) {
	p := &PlayerState{}
	if p.TakeItem(Ammo) {
		t.Fatal("TakeItem() on empty inventory = true, want false")
	}

	p.GiveItem(Ammo, 1)
	if !p.TakeItem(Ammo) {
		t.Fatal("TakeItem() with one arrow = false, want true")
	}
	if got := p.ItemCount(Ammo); got != 0 {
		t.Errorf("ItemCount() = %d, want 0", got)
	}
	if _, ok := p.Items[Ammo]; ok {
		t.Error("empty stack should be removed from inventory")
	}
}

func TestParseWeaponShape(t *testing.T) {
	tests := []struct {
		in      string
		want    WeaponShape
		wantErr bool
	}{
		{in: "sword", want: WeaponWideArc},
		{in: "wide_arc", want: WeaponWideArc},
		{in: "axe", want: WeaponFrontalCone},
		{in: "bow", want: WeaponRanged},
		{in: "spear", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWeaponShape(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWeaponShape(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseWeaponShape(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
