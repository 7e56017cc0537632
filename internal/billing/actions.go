package billing

// DefaultActions are the host operations with a flat success price.
var DefaultActions = []string{
	"Game.notify",
	"Market.cancelOrder",
	"Market.changeOrderPrice",
	"Market.createOrder",
	"Market.deal",
	"Market.extendOrder",
	"ConstructionSite.remove",
	"Creep.attack",
	"Creep.attackController",
	"Creep.build",
	"Creep.claimController",
	"Creep.dismantle",
	"Creep.drop",
	"Creep.generateSafeMode",
	"Creep.harvest",
	"Creep.heal",
	"Creep.move",
	"Creep.notifyWhenAttacked",
	"Creep.pickup",
	"Creep.rangedAttack",
	"Creep.rangedHeal",
	"Creep.rangedMassAttack",
	"Creep.repair",
	"Creep.reserveController",
	"Creep.signController",
	"Creep.suicide",
	"Creep.transfer",
	"Creep.upgradeController",
	"Creep.withdraw",
	"Flag.remove",
	"Flag.setColor",
	"Flag.setPosition",
	"OwnedStructure.destroy",
	"OwnedStructure.notifyWhenAttacked",
	"PowerCreep.delete",
	"PowerCreep.drop",
	"PowerCreep.enableRoom",
	"PowerCreep.move",
	"PowerCreep.notifyWhenAttacked",
	"PowerCreep.pickup",
	"PowerCreep.renew",
	"PowerCreep.spawn",
	"PowerCreep.suicide",
	"PowerCreep.transfer",
	"PowerCreep.upgrade",
	"PowerCreep.usePower",
	"PowerCreep.withdraw",
	"Room.createConstructionSite",
	"Room.createFlag",
	"RoomPosition.createConstructionSite",
	"RoomPosition.createFlag",
	"Structure.destroy",
	"Structure.notifyWhenAttacked",
	"StructureController.activateSafeMode",
	"StructureController.unclaim",
	"StructureExtension.destroy",
	"StructureExtension.notifyWhenAttacked",
	"StructureExtractor.destroy",
	"StructureExtractor.notifyWhenAttacked",
	"StructureFactory.destroy",
	"StructureFactory.notifyWhenAttacked",
	"StructureFactory.produce",
	"StructureInvaderCore.destroy",
	"StructureInvaderCore.notifyWhenAttacked",
	"StructureKeeperLair.destroy",
	"StructureKeeperLair.notifyWhenAttacked",
	"StructureLab.destroy",
	"StructureLab.notifyWhenAttacked",
	"StructureLab.boostCreep",
	"StructureLab.reverseReaction",
	"StructureLab.runReaction",
	"StructureLab.unboostCreep",
	"StructureLink.destroy",
	"StructureLink.notifyWhenAttacked",
	"StructureLink.transferEnergy",
	"StructureNuker.destroy",
	"StructureNuker.notifyWhenAttacked",
	"StructureNuker.launchNuke",
	"StructureObserver.destroy",
	"StructureObserver.notifyWhenAttacked",
	"StructureObserver.observe",
	"StructurePowerBank.destroy",
	"StructurePowerBank.notifyWhenAttacked",
	"StructurePowerSpawn.destroy",
	"StructurePowerSpawn.notifyWhenAttacked",
	"StructurePowerSpawn.processPower",
	"StructurePortal.destroy",
	"StructurePortal.notifyWhenAttacked",
	"StructureRampart.destroy",
	"StructureRampart.notifyWhenAttacked",
	"StructureRampart.setPublic",
	"StructureRoad.destroy",
	"StructureRoad.notifyWhenAttacked",
	"StructureSpawn.destroy",
	"StructureSpawn.notifyWhenAttacked",
	"StructureSpawn.createCreep",
	"StructureSpawn.spawnCreep",
	"StructureSpawn.recycleCreep",
	"StructureSpawn.renewCreep",
	"StructureStorage.destroy",
	"StructureStorage.notifyWhenAttacked",
	"StructureTerminal.destroy",
	"StructureTerminal.notifyWhenAttacked",
	"StructureTerminal.send",
	"StructureTower.destroy",
	"StructureTower.notifyWhenAttacked",
	"StructureTower.heal",
	"StructureTower.attack",
	"StructureTower.repair",
	"StructureWall.destroy",
	"StructureWall.notifyWhenAttacked",
}
